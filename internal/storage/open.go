package storage

import (
	"context"
	"errors"
	"strings"

	logx "pacebot/pkg/logx"
)

// Store is the persistence API used by the state and access layers.
//
// Load methods return the zero record (and no error) when nothing was saved
// yet, and an error wrapping ErrCorrupt when the stored data is unreadable.
type Store interface {
	LoadSudo(ctx context.Context) ([]int64, error)
	SaveSudo(ctx context.Context, ids []int64) error
	LoadChats(ctx context.Context) (ChatState, error)
	SaveChats(ctx context.Context, st ChatState) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
