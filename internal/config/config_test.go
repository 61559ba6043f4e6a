package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "pacebot/pkg/logx"
)

const yamlConfig = `
telegram:
  tokens: ["111:aaa", " ", "222:bbb"]
  owner_user_ids: [42]
  poll_timeout: 15s
pace:
  min_delay: 100ms
  adaptive: false
limits:
  text_cap: 50
maintenance:
  checkpoint: "@every 5m"
`

const tomlConfig = `
[telegram]
tokens = ["111:aaa"]
owner_user_ids = [7]
group_log = "-1001"

[pace]
max_attempts = 3
multiplier = 2.0

[storage]
driver = "sqlite"
path = "./data/state.db"
busy_timeout = "5s"
`

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode("bot.yaml", []byte(yamlConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"111:aaa", "222:bbb"}, cfg.Telegram.CleanTokens())
	assert.Equal(t, []int64{42}, cfg.Telegram.OwnerUserIDs)
	poll, err := cfg.Telegram.Poll()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, poll)

	p, err := cfg.Pace.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, p.MinDelay)
	assert.False(t, p.Adaptive)
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultMultiplier, p.Multiplier)

	assert.Equal(t, 50, cfg.Limits.TextLimit())
	assert.Equal(t, DefaultImageCap, cfg.Limits.ImageLimit())
	assert.Equal(t, DefaultAssetsDir, cfg.Assets.Directory())
	assert.Nil(t, cfg.Storage)
}

func TestDecodeTOML(t *testing.T) {
	cfg, err := Decode("bot.toml", []byte(tomlConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	chat, err := cfg.Telegram.GroupLogChat()
	require.NoError(t, err)
	assert.Equal(t, int64(-1001), chat)

	p, err := cfg.Pace.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.True(t, p.Adaptive)

	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("bot.json", []byte(`{"telegram":{"tokens":["x"]},"plugins":{}}`))
	require.Error(t, err)

	_, err = Decode("bot.yaml", []byte("telegram:\n  token: x\n"))
	require.Error(t, err)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode("bot.json", []byte(`{"telegram":{}} {"telegram":{}}`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"no tokens", Config{Telegram: TelegramConfig{OwnerUserIDs: []int64{1}}}},
		{"no owners", Config{Telegram: TelegramConfig{Tokens: []string{"t"}}}},
		{"bad poll", Config{Telegram: TelegramConfig{Tokens: []string{"t"}, OwnerUserIDs: []int64{1}, PollTimeout: "soon"}}},
		{"bad group", Config{Telegram: TelegramConfig{Tokens: []string{"t"}, OwnerUserIDs: []int64{1}, GroupLog: "@chan"}}},
		{"backoff order", Config{
			Telegram: TelegramConfig{Tokens: []string{"t"}, OwnerUserIDs: []int64{1}},
			Pace:     PaceConfig{BaseBackoff: "10s", MaxBackoff: "1s"},
		}},
		{"low multiplier", Config{
			Telegram: TelegramConfig{Tokens: []string{"t"}, OwnerUserIDs: []int64{1}},
			Pace:     PaceConfig{Multiplier: 0.5},
		}},
		{"negative cap", Config{
			Telegram: TelegramConfig{Tokens: []string{"t"}, OwnerUserIDs: []int64{1}},
			Limits:   LimitsConfig{TextCap: -1},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestSummarizeChangeNeverLeaksTokens(t *testing.T) {
	oldCfg := &Config{Telegram: TelegramConfig{Tokens: []string{"secret-1"}}}
	newCfg := &Config{
		Telegram: TelegramConfig{Tokens: []string{"secret-2"}},
		Limits:   LimitsConfig{TextCap: 10},
	}
	changed, attrs := SummarizeChange(oldCfg, newCfg)
	assert.Equal(t, []string{"telegram", "limits"}, changed)
	assert.Equal(t, []string{"telegram"}, RestartRequired(changed))
	var buf bytes.Buffer
	logx.NewWriter(&buf, "debug").Info("config changed", attrs...)
	assert.NotContains(t, buf.String(), "secret")
	assert.Contains(t, buf.String(), `"telegram.clients":1`)

	changed, _ = SummarizeChange(newCfg, newCfg)
	assert.Empty(t, changed)
}

func TestManagerLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o600))

	m := NewManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// unchanged content is not republished
	m.reload(context.Background())
	select {
	case <-sub:
		t.Fatal("unexpected publish")
	default:
	}

	updated := yamlConfig + "assets:\n  dir: ./pics\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	m.reload(context.Background())
	select {
	case got := <-sub:
		assert.Equal(t, "./pics", got.Assets.Directory())
	default:
		t.Fatal("expected publish")
	}

	m.SetValidator(func(context.Context, *Config) error { return assert.AnError })
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o600))
	m.reload(context.Background())
	assert.Equal(t, "./pics", m.Get().Assets.Directory())
}
