package app

import (
	"context"
	"errors"

	"pacebot/internal/config"
	"pacebot/internal/storage"
	logx "pacebot/pkg/logx"
)

var ErrStorageDisabled = errors.New("storage is disabled in this config")

// StateReport is the persisted state as stored, without owners merged in.
type StateReport struct {
	Driver string
	Sudo   []int64
	Chats  storage.ChatState
}

// InspectState opens the configured store read-side and returns its records.
// It does not start any client.
func InspectState(ctx context.Context, cfgPath string) (StateReport, error) {
	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return StateReport{}, err
	}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return StateReport{}, err
	}
	if !enabled {
		return StateReport{}, ErrStorageDisabled
	}
	st, err := storage.Open(sc, logx.Nop())
	if err != nil {
		return StateReport{}, err
	}
	defer st.Close()

	rep := StateReport{Driver: sc.Driver}
	if rep.Sudo, err = st.LoadSudo(ctx); err != nil {
		return rep, err
	}
	rep.Chats, err = st.LoadChats(ctx)
	return rep, err
}
