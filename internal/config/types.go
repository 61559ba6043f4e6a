package config

// Config is the on-disk configuration. JSON, YAML and TOML files share one
// schema; unknown keys are rejected.
type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Pace        PaceConfig        `json:"pace"`
	Limits      LimitsConfig      `json:"limits"`
	Assets      AssetsConfig      `json:"assets"`
	Storage     *StorageConfig    `json:"storage,omitempty"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

type TelegramConfig struct {
	// Tokens lists one bot token per pool client. Order defines client indexes.
	Tokens       []string `json:"tokens"`
	OwnerUserIDs []int64  `json:"owner_user_ids"`
	GroupLog     string   `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// RatePerSec caps outgoing requests per client. 0 means default (25).
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// PaceConfig controls per-chat delays and the retry policy around every
// remote call.
//
// All durations are Go duration strings (e.g. "50ms", "500ms", "30s").
//
// Defaults (when fields are omitted/zero):
//   - min_delay: "50ms"
//   - auto_step: "500ms"
//   - adaptive: true
//   - max_attempts: 8
//   - base_backoff: "500ms"
//   - max_backoff: "30s"
//   - multiplier: 1.3
type PaceConfig struct {
	MinDelay    string  `json:"min_delay,omitempty"`
	AutoStep    string  `json:"auto_step,omitempty"`
	Adaptive    *bool   `json:"adaptive,omitempty"`
	MaxAttempts int     `json:"max_attempts,omitempty"`
	BaseBackoff string  `json:"base_backoff,omitempty"`
	MaxBackoff  string  `json:"max_backoff,omitempty"`
	Multiplier  float64 `json:"multiplier,omitempty"`
}

// LimitsConfig caps bounded loop counts per command. 0 means default.
type LimitsConfig struct {
	TextCap  int `json:"text_cap,omitempty"`
	ImageCap int `json:"image_cap,omitempty"`
}

type AssetsConfig struct {
	// Dir holds the images rotated by playlist workers. Default "./pfp".
	Dir string `json:"dir,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/pacebot.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MaintenanceConfig schedules background housekeeping with cron specs
// (robfig/cron syntax, including descriptors like "@every 5m").
// An empty spec disables the job.
type MaintenanceConfig struct {
	// Checkpoint rewrites the persisted state even if nothing changed.
	Checkpoint string `json:"checkpoint,omitempty"`
	// Heartbeat logs a status line (active tasks, clients, known chats).
	Heartbeat string `json:"heartbeat,omitempty"`
}
