package config

import (
	"reflect"
	"strings"

	logx "pacebot/pkg/logx"
)

// SummarizeChange returns the changed sections and safe structured attrs for
// logging. Tokens are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if !reflect.DeepEqual(ot.CleanTokens(), nt.CleanTokens()) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		ot.RatePerSec != nt.RatePerSec {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.clients", len(nt.CleanTokens())),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Pace, newCfg.Pace) {
		changed = append(changed, "pace")
		if p, err := newCfg.Pace.Resolve(); err == nil {
			attrs = append(attrs,
				logx.Duration("pace.min_delay", p.MinDelay),
				logx.Bool("pace.adaptive", p.Adaptive),
				logx.Int("pace.max_attempts", p.MaxAttempts),
			)
		}
	}

	if oldCfg.Limits != newCfg.Limits {
		changed = append(changed, "limits")
		attrs = append(attrs,
			logx.Int("limits.text_cap", newCfg.Limits.TextLimit()),
			logx.Int("limits.image_cap", newCfg.Limits.ImageLimit()),
		)
	}

	if oldCfg.Assets != newCfg.Assets {
		changed = append(changed, "assets")
		attrs = append(attrs, logx.String("assets.dir", newCfg.Assets.Directory()))
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}

	if oldCfg.Maintenance != newCfg.Maintenance {
		changed = append(changed, "maintenance")
		attrs = append(attrs,
			logx.String("maintenance.checkpoint", newCfg.Maintenance.Checkpoint),
			logx.String("maintenance.heartbeat", newCfg.Maintenance.Heartbeat),
		)
	}
	return changed, attrs
}

// RestartRequired reports sections whose changes only apply after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "telegram", "storage":
			out = append(out, s)
		}
	}
	return out
}
