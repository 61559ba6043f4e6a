package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrCorrupt  = errors.New("stored record is corrupt")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON files next to Path (default)
//   - "sqlite": SQLite database file at Path
//
// If Driver is "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ChatState is the chat-state record. Delays are in seconds.
type ChatState struct {
	Known  []int64           `json:"known_chats"`
	Delays map[int64]float64 `json:"delay_settings"`
}

// AuditEntry records one command invocation.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At            time.Time
	ActorID       int64
	ActorUsername string
	ChatID        int64
	Client        int
	Command       string
	Args          string
	OK            bool
	Error         string
	TookMS        int64
}
