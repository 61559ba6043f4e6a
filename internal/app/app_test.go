package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacebot/internal/config"
	"pacebot/internal/storage"
	logx "pacebot/pkg/logx"
)

func TestMapStorageConfig(t *testing.T) {
	_, enabled, err := mapStorageConfig(&config.Config{})
	require.NoError(t, err)
	assert.False(t, enabled)

	sc, enabled, err := mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "SQLite", Path: "x.db"}})
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, time.Second, sc.BusyTimeout)

	_, _, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "sqlite"}})
	assert.Error(t, err)

	_, _, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "redis"}})
	assert.Error(t, err)
}

func TestMapInvokeConfig(t *testing.T) {
	pc, err := config.PaceConfig{MinDelay: "100ms", AutoStep: "1s"}.Resolve()
	require.NoError(t, err)
	ic := mapInvokeConfig(pc)
	assert.Equal(t, time.Second, ic.Step)
	assert.Equal(t, config.DefaultMaxAttempts, ic.MaxAttempts)
	assert.True(t, ic.Adaptive)
}

func TestInspectState(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "telegram:\n  tokens: [\"t\"]\n  owner_user_ids: [1]\nstorage:\n  driver: file\n  path: " + statePath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	st, err := storage.Open(storage.Config{Driver: "file", Path: statePath}, logx.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, st.SaveSudo(ctx, []int64{5}))
	require.NoError(t, st.SaveChats(ctx, storage.ChatState{Known: []int64{-1}, Delays: map[int64]float64{-1: 2}}))
	require.NoError(t, st.Close())

	rep, err := InspectState(ctx, cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "file", rep.Driver)
	assert.Equal(t, []int64{5}, rep.Sudo)
	assert.Equal(t, []int64{-1}, rep.Chats.Known)
	assert.Equal(t, 2.0, rep.Chats.Delays[-1])
}

func TestInspectStateDisabled(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"telegram":{"tokens":["t"],"owner_user_ids":[1]}}`), 0o600))
	_, err := InspectState(context.Background(), cfgPath)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}
