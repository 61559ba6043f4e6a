package app

import (
	"context"
	"strings"

	"pacebot/internal/config"
	logx "pacebot/pkg/logx"
)

// reloadLoop applies hot-reloaded configs. Bursts are coalesced so only the
// newest config is applied.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.apply(last, next)
			last = next
		}
	}
}

func (a *App) apply(prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.Strings("sections", restart))
	}

	// Target first, so Apply doesn't warn when the Telegram sink is enabled.
	chatID, _ := next.Telegram.GroupLogChat()
	a.logs.SetTelegramTarget(chatID, next.Logging.Telegram.ThreadID)
	a.logs.Apply(mapLogConfig(next))

	a.sudo.SetOwners(next.Telegram.OwnerUserIDs)

	if pc, err := next.Pace.Resolve(); err != nil {
		a.log.Warn("invalid pace config; keeping previous", logx.Err(err))
	} else {
		a.model.SetMin(pc.MinDelay)
		a.inv.Apply(mapInvokeConfig(pc))
	}

	a.handlers.SetLimits(next.Limits.TextLimit(), next.Limits.ImageLimit())

	if err := a.applyMaintenance(next); err != nil {
		a.log.Warn("maintenance schedule rejected", logx.Err(err))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
