package app

import (
	"context"
	"errors"
	"time"

	"pacebot/internal/config"
	"pacebot/internal/task/registry"
	logx "pacebot/pkg/logx"
)

const (
	jobCheckpoint = "checkpoint"
	jobHeartbeat  = "heartbeat"
)

func maintenanceSpecs(cfg *config.Config) map[string]string {
	if cfg == nil {
		return nil
	}
	return map[string]string{
		jobCheckpoint: cfg.Maintenance.Checkpoint,
		jobHeartbeat:  cfg.Maintenance.Heartbeat,
	}
}

// applyMaintenance (re)registers the housekeeping jobs. Empty specs remove them.
func (a *App) applyMaintenance(cfg *config.Config) error {
	specs := maintenanceSpecs(cfg)
	return errors.Join(
		a.sched.Set(jobCheckpoint, specs[jobCheckpoint], 30*time.Second, a.checkpoint),
		a.sched.Set(jobHeartbeat, specs[jobHeartbeat], 5*time.Second, a.heartbeat),
	)
}

// checkpoint rewrites both state records even when nothing changed.
func (a *App) checkpoint(ctx context.Context) error {
	a.persist.MarkAll()
	return a.persist.Flush(ctx)
}

func (a *App) heartbeat(context.Context) error {
	c := a.reg.Counters()
	a.log.Info("heartbeat",
		logx.Int("active_tasks", len(a.reg.ListActive(registry.All()))),
		logx.Int("clients", len(a.adapters)),
		logx.Int("known_chats", a.chats.Len()),
		logx.Uint64("tasks_started", c.Started),
		logx.Uint64("task_panics", c.Panics),
	)
	return nil
}
