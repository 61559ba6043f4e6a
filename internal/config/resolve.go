package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMinDelay    = 50 * time.Millisecond
	DefaultAutoStep    = 500 * time.Millisecond
	DefaultMaxAttempts = 8
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 30 * time.Second
	DefaultMultiplier  = 1.3
	DefaultTextCap     = 500
	DefaultImageCap    = 200
	DefaultRatePerSec  = 25
	DefaultPollTimeout = 10 * time.Second
	DefaultAssetsDir   = "./pfp"
)

// Pace is PaceConfig with defaults applied and durations parsed.
type Pace struct {
	MinDelay    time.Duration
	AutoStep    time.Duration
	Adaptive    bool
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Multiplier  float64
}

func (p PaceConfig) Resolve() (Pace, error) {
	var (
		out Pace
		err error
	)
	if out.MinDelay, err = ParseDurationOrDefault("pace.min_delay", p.MinDelay, DefaultMinDelay); err != nil {
		return out, err
	}
	if out.AutoStep, err = ParseDurationOrDefault("pace.auto_step", p.AutoStep, DefaultAutoStep); err != nil {
		return out, err
	}
	if out.BaseBackoff, err = ParseDurationOrDefault("pace.base_backoff", p.BaseBackoff, DefaultBaseBackoff); err != nil {
		return out, err
	}
	if out.MaxBackoff, err = ParseDurationOrDefault("pace.max_backoff", p.MaxBackoff, DefaultMaxBackoff); err != nil {
		return out, err
	}
	if out.MaxBackoff < out.BaseBackoff {
		return out, fmt.Errorf("pace.max_backoff (%s) must be >= pace.base_backoff (%s)", out.MaxBackoff, out.BaseBackoff)
	}
	out.Adaptive = p.Adaptive == nil || *p.Adaptive
	out.MaxAttempts = p.MaxAttempts
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = DefaultMaxAttempts
	}
	out.Multiplier = p.Multiplier
	switch {
	case out.Multiplier == 0:
		out.Multiplier = DefaultMultiplier
	case out.Multiplier < 1:
		return out, fmt.Errorf("pace.multiplier must be >= 1, got %v", p.Multiplier)
	}
	return out, nil
}

func (l LimitsConfig) TextLimit() int {
	if l.TextCap <= 0 {
		return DefaultTextCap
	}
	return l.TextCap
}

func (l LimitsConfig) ImageLimit() int {
	if l.ImageCap <= 0 {
		return DefaultImageCap
	}
	return l.ImageCap
}

func (a AssetsConfig) Directory() string {
	if d := strings.TrimSpace(a.Dir); d != "" {
		return d
	}
	return DefaultAssetsDir
}

// CleanTokens returns the non-empty tokens in order.
func (t TelegramConfig) CleanTokens() []string {
	out := make([]string, 0, len(t.Tokens))
	for _, tok := range t.Tokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func (t TelegramConfig) Rate() float64 {
	if t.RatePerSec <= 0 {
		return DefaultRatePerSec
	}
	return t.RatePerSec
}

func (t TelegramConfig) Poll() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", t.PollTimeout, DefaultPollTimeout)
}

// GroupLogChat parses group_log as a chat id. Empty means unset.
func (t TelegramConfig) GroupLogChat() (int64, error) {
	s := strings.TrimSpace(t.GroupLog)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.group_log: invalid chat id %q", t.GroupLog)
	}
	return id, nil
}

// Validate checks everything that can be checked without network access.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if len(c.Telegram.CleanTokens()) == 0 {
		errs = append(errs, errors.New("telegram.tokens: at least one token is required"))
	}
	if len(c.Telegram.OwnerUserIDs) == 0 {
		errs = append(errs, errors.New("telegram.owner_user_ids: at least one owner is required"))
	}
	if _, err := c.Telegram.Poll(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Telegram.GroupLogChat(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Pace.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if c.Limits.TextCap < 0 || c.Limits.ImageCap < 0 {
		errs = append(errs, errors.New("limits: caps must be >= 0"))
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
