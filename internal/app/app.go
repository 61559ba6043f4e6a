package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pacebot/internal/access"
	"pacebot/internal/actions"
	"pacebot/internal/clientpool"
	"pacebot/internal/commands"
	"pacebot/internal/config"
	"pacebot/internal/eventbus"
	"pacebot/internal/invoke"
	"pacebot/internal/pace"
	"pacebot/internal/runtime/supervisor"
	"pacebot/internal/state"
	"pacebot/internal/storage"
	"pacebot/internal/task/registry"
	"pacebot/internal/task/scheduler"
	kit "pacebot/internal/transport"
	telegram "pacebot/internal/transport/telegram/adapter"
	"pacebot/internal/transport/telegram/router"
	logx "pacebot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapters []*telegram.Adapter

	model    *pace.Model
	inv      *invoke.Invoker
	reg      *registry.Registry
	acts     *actions.Service
	sudo     *access.Sudo
	chats    *state.Chats
	persist  *state.Persister
	handlers *commands.Handlers
	router   *router.Router
	sched    *scheduler.Service

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := cfg.Telegram.Poll()
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	tokens := cfg.Telegram.CleanTokens()
	adapters := make([]*telegram.Adapter, 0, len(tokens))
	for i, tok := range tokens {
		ad, err := telegram.New(telegram.Config{
			Token:       tok,
			PollTimeout: pollTimeout,
			Client:      i,
			RatePerSec:  cfg.Telegram.Rate(),
		}, bootLog.With(logx.Int("client", i)))
		if err != nil {
			return nil, fmt.Errorf("telegram client %d: %w", i, err)
		}
		adapters = append(adapters, ad)
	}

	// logx.New calls Apply immediately; bootstrap with the Telegram sink off
	// so the missing target doesn't warn, then set the target and enable it.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, adapters[0])
	if chatID, _ := cfg.Telegram.GroupLogChat(); chatID != 0 {
		logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	pc, err := cfg.Pace.Resolve()
	if err != nil {
		return nil, err
	}
	model := pace.New(pc.MinDelay)
	inv := invoke.New(model, mapInvokeConfig(pc), invoke.WithLogger(log.With(logx.String("comp", "invoke"))))

	bus := eventbus.New()
	reg := registry.New(context.Background(),
		registry.WithLogger(log.With(logx.String("comp", "registry"))),
		registry.WithBus(bus),
	)

	remotes := make([]kit.Remote, len(adapters))
	routed := make([]kit.Adapter, len(adapters))
	for i, ad := range adapters {
		remotes[i] = ad
		routed[i] = ad
	}
	acts := actions.NewService(reg, clientpool.New(remotes), inv,
		actions.DirAssets{Dir: cfg.Assets.Directory()},
		actions.WithLogger(log.With(logx.String("comp", "actions"))),
	)

	sudo := access.NewSudo(cfg.Telegram.OwnerUserIDs)
	chats := state.NewChats()
	persist := state.NewPersister(store, sudo, chats, model, log.With(logx.String("comp", "state")))

	h := commands.New(commands.Deps{
		Actions:   acts,
		Sudo:      sudo,
		Slides:    access.NewSlides(),
		Chats:     chats,
		AssetsDir: cfg.Assets.Directory(),
		TextCap:   cfg.Limits.TextLimit(),
		ImageCap:  cfg.Limits.ImageLimit(),
		Log:       log.With(logx.String("comp", "commands")),
	})

	ropts := []router.Option{
		router.WithLogger(log.With(logx.String("comp", "router"))),
		router.WithObserver(h.Observe),
		router.WithFallback(h.AutoReply),
	}
	if store != nil {
		ropts = append(ropts, router.WithAuditor(store))
	}
	rt := router.New(routed, sudo, ropts...)
	rt.SetCommands(h.Commands())
	rt.SetCallbacks(h.Callbacks())

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapters: adapters,
		model:    model,
		inv:      inv,
		reg:      reg,
		acts:     acts,
		sudo:     sudo,
		chats:    chats,
		persist:  persist,
		handlers: h,
		router:   rt,
		sched:    scheduler.New(log.With(logx.String("comp", "scheduler"))),
		updates:  make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(a.validate)

	// State is restored before any update is routed so the first command
	// sees the persisted sudo set and delays.
	lctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a.persist.Load(lctx)
	cancel()

	for _, ad := range a.adapters {
		if err := ad.Start(a.sup.Context(), a.updates); err != nil {
			return fmt.Errorf("telegram client %d: %w", ad.Client(), err)
		}
	}
	mctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	a.router.PublishMenu(mctx)
	cancel()

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	a.sup.Go("state.persist", func(c context.Context) error {
		return a.persist.Run(c)
	})
	a.sup.Go0("tasks.events", a.logTaskEvents)

	if err := a.applyMaintenance(a.cfgm.Get()); err != nil {
		a.log.Warn("maintenance schedule rejected", logx.Err(err))
	}
	a.sched.Start(a.sup.Context())

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started",
		logx.Int("clients", len(a.adapters)),
		logx.Int("known_chats", a.chats.Len()),
		logx.Bool("storage", a.store != nil),
	)
	return nil
}

// validate runs on every hot reload before the new config is committed.
func (a *App) validate(_ context.Context, cfg *config.Config) error {
	var errs []error
	if _, _, err := mapStorageConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	for name, spec := range maintenanceSpecs(cfg) {
		if err := a.sched.Validate(spec); err != nil {
			errs = append(errs, fmt.Errorf("maintenance.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) logTaskEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ev, _ := e.Data.(registry.Event)
			fields := []logx.Field{
				logx.String("type", e.Type),
				logx.String("task", ev.Handle.Key.String()),
				logx.String("id", ev.Handle.ID),
			}
			if e.Type == eventbus.TaskStopped {
				fields = append(fields, logx.Duration("ran", e.Time.Sub(ev.Handle.Started)))
				if ev.Err != nil && !errors.Is(ev.Err, context.Canceled) {
					fields = append(fields, logx.Err(ev.Err))
				}
			}
			a.log.Debug("task event", fields...)
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping+"\nSTATUS=stopping ("+string(reason)+")")

	a.sup.Cancel()

	// step runs one shutdown stage with an upper bound so one component
	// can't stall the whole stop. It never extends the caller's deadline.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		var cancel context.CancelFunc
		if limit > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("tasks", 3*time.Second, func(c context.Context) error { return a.reg.Close(c) })
	step("adapters", 2*time.Second, func(c context.Context) error {
		var errs []error
		for _, ad := range a.adapters {
			if err := ad.Stop(c); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	// Waiting on the supervisor also lets the persister write its final flush.
	step("supervisor", 6*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
