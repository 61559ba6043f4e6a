// Package router turns Telegram updates into command invocations: it drops
// the duplicates every pooled bot receives, checks access, runs handlers on a
// bounded worker pool and records privileged commands in the audit log.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "pacebot/internal/runtime/supervisor"
	"pacebot/internal/storage"
	kit "pacebot/internal/transport"
	logx "pacebot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessSudo
	AccessOwner
)

func (a Access) String() string {
	switch a {
	case AccessSudo:
		return "sudo"
	case AccessOwner:
		return "owner"
	default:
		return "everyone"
	}
}

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	// Timeout bounds the handler. 0 means no limit (long broadcasts).
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update  kit.Update
	Message *kit.Message
	Chat    kit.ChatTarget
	FromID  int64
	// Client is the pool index of the bot that received the message.
	Client  int
	Command string
	Args    []string
	ReqID   string

	// Adapter is the receiving bot; replies go out through it.
	Adapter kit.Adapter
	Logger  logx.Logger
}

// Text returns the arguments joined by single spaces.
func (r *Request) Text() string { return strings.Join(r.Args, " ") }

// Reply answers the triggering message.
func (r *Request) Reply(ctx context.Context, text string) (kit.MessageRef, error) {
	opt := &kit.SendOptions{DisablePreview: true}
	if r.Message != nil {
		opt.ReplyTo = r.Message.ID
	}
	return r.Adapter.SendText(ctx, r.Chat, text, opt)
}

// Guard answers access questions. access.Sudo implements it.
type Guard interface {
	IsOwner(id int64) bool
	IsSudo(id int64) bool
}

// Auditor records privileged commands. storage.Store implements it.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

type Option func(*Router)

func WithLogger(log logx.Logger) Option { return func(r *Router) { r.log = log } }

func WithAuditor(a Auditor) Option { return func(r *Router) { r.audit = a } }

// WithObserver installs a hook that sees every deduplicated message before
// routing. It runs on the dispatch goroutine and must not block.
func WithObserver(fn func(msg *kit.Message)) Option { return func(r *Router) { r.observe = fn } }

// WithFallback handles messages that are not commands.
func WithFallback(h HandlerFunc) Option { return func(r *Router) { r.fallback = h } }

func WithWorkers(n int) Option { return func(r *Router) { r.workers = n } }

func WithDedupWindow(d time.Duration) Option { return func(r *Router) { r.seen = newDedup(d) } }

type Router struct {
	adapters []kit.Adapter
	guard    Guard
	audit    Auditor
	observe  func(msg *kit.Message)
	fallback HandlerFunc
	log      logx.Logger
	workers  int
	seen     *dedup

	mu       sync.RWMutex
	commands  map[string]*Command
	ordered   []*Command
	callbacks map[string]*Callback

	jobs chan func(ctx context.Context)
}

// New builds a router over the pool's adapters, indexed like the pool.
func New(adapters []kit.Adapter, guard Guard, opts ...Option) *Router {
	r := &Router{
		adapters: adapters,
		guard:    guard,
		log:      logx.Nop(),
		workers:  max(runtime.NumCPU(), 4),
		seen:     newDedup(defaultDedupWindow),
		commands: map[string]*Command{},
		jobs:     make(chan func(ctx context.Context), 256),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetCommands replaces the command table. /help is always injected.
func (r *Router) SetCommands(cmds []Command) {
	cmds = append(append([]Command(nil), cmds...), Command{
		Name:        "help",
		Description: "show this menu",
		Usage:       "/help",
		Access:      AccessEveryone,
		Timeout:     10 * time.Second,
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Adapter.SendText(ctx, req.Chat, r.helpText(req.FromID), &kit.SendOptions{
				ParseMode:      "HTML",
				DisablePreview: true,
				ReplyTo:        req.Message.ID,
			})
			return err
		},
	})

	table := make(map[string]*Command, len(cmds))
	ordered := make([]*Command, 0, len(cmds))
	for i := range cmds {
		c := &cmds[i]
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		if _, dup := table[name]; dup {
			r.log.Warn("duplicate command ignored", logx.String("cmd", name))
			continue
		}
		table[name] = c
		ordered = append(ordered, c)
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" {
				continue
			}
			if _, taken := table[a]; !taken {
				table[a] = c
			}
		}
	}

	r.mu.Lock()
	r.commands = table
	r.ordered = ordered
	r.mu.Unlock()
}

// PublishMenu pushes the command list to every bot that supports it.
func (r *Router) PublishMenu(ctx context.Context) {
	r.mu.RLock()
	menu := buildMenu(r.ordered)
	r.mu.RUnlock()
	for i, a := range r.adapters {
		up, ok := a.(kit.CommandMenuUpdater)
		if !ok {
			continue
		}
		if err := up.UpdateMenuCommands(ctx, menu); err != nil {
			r.log.Warn("menu update failed", logx.Int("client", i), logx.Err(err))
		}
	}
}

func (r *Router) lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

func (r *Router) allowed(a Access, id int64) bool {
	switch a {
	case AccessOwner:
		return r.guard.IsOwner(id)
	case AccessSudo:
		return r.guard.IsSudo(id)
	default:
		return true
	}
}

// Run dispatches updates until ctx is done or updates is closed.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	r.log.Info("command dispatcher started", logx.Int("workers", r.workers), logx.Int("job_queue_cap", cap(r.jobs)))

	for i := range r.workers {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-r.jobs:
					r.runJob(c, idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	sup.Go0("dedup.prune", func(c context.Context) {
		t := time.NewTicker(r.seen.window)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case now := <-t.C:
				r.seen.prune(now)
			}
		}
	})

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) runJob(ctx context.Context, worker int, job func(ctx context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
		}
	}()
	job(ctx)
}

func (r *Router) enqueue(job func(ctx context.Context)) bool {
	select {
	case r.jobs <- job:
		return true
	default:
		return false
	}
}

func (r *Router) adapter(client int) (kit.Adapter, bool) {
	if client < 0 || client >= len(r.adapters) {
		return nil, false
	}
	return r.adapters[client], true
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	if up.Kind == kit.UpdateCallback && up.Callback != nil {
		r.routeCallback(up)
		return
	}
	msg := up.Message
	if up.Kind != kit.UpdateMessage || msg == nil {
		return
	}
	if !r.seen.first(msg.ChatID, msg.ID, time.Now()) {
		return
	}
	ad, ok := r.adapter(up.Client)
	if !ok {
		r.log.Warn("update from unknown client", logx.Int("client", up.Client))
		return
	}
	if r.observe != nil {
		r.observe(msg)
	}

	req := &Request{
		Update:  up,
		Message: msg,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:  msg.FromID,
		Client:  up.Client,
		ReqID:   newReqID(),
		Adapter: ad,
	}

	name, args, isCmd := parseCommand(msg.Text)
	if !isCmd {
		if r.fallback != nil {
			req.Logger = r.log.With(logx.String("rid", req.ReqID), logx.Int64("chat_id", msg.ChatID))
			h := Chain(r.fallback, MWPanicRecover(r.log))
			r.enqueue(func(c context.Context) { _ = h(c, req) })
		}
		return
	}

	cmd, ok := r.lookup(name)
	if !ok {
		// Groups often hold other bots; unknown commands are not ours to answer.
		return
	}
	req.Command = cmd.Name
	req.Args = args
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
		logx.Int("client", up.Client),
		logx.String("cmd", cmd.Name),
	)

	if !r.allowed(cmd.Access, msg.FromID) {
		deny := "❌ Sudo/Owner only."
		if cmd.Access == AccessOwner {
			deny = "❌ Owner-only command."
		}
		req.Logger.Info("command denied", logx.String("access", cmd.Access.String()))
		r.enqueue(func(c context.Context) { _, _ = req.Reply(c, deny) })
		return
	}

	mws := []Middleware{MWPanicRecover(r.log), MWRequestLog(r.log)}
	if cmd.Access != AccessEveryone && r.audit != nil {
		mws = append(mws, MWAudit(r.audit, r.log))
	}
	mws = append(mws, MWTimeout(cmd.Timeout))
	final := Chain(cmd.Handle, mws...)

	if !r.enqueue(func(c context.Context) { _ = final(c, req) }) {
		req.Logger.Warn("command queue full")
		go func() { _, _ = req.Reply(ctx, "busy, try again") }()
	}
}
