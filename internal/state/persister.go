package state

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"pacebot/internal/access"
	"pacebot/internal/pace"
	"pacebot/internal/storage"
	logx "pacebot/pkg/logx"
)

// Persister writes the sudo set and the chat state to storage after they
// change. Writes are coalesced: any number of changes between two flushes
// produce one write per record.
type Persister struct {
	store storage.Store
	sudo  *access.Sudo
	chats *Chats
	pace  *pace.Model
	log   logx.Logger

	sudoDirty  atomic.Bool
	chatsDirty atomic.Bool
	kick       chan struct{}
}

// NewPersister wires change hooks on sudo, chats and model. store may be nil
// (storage disabled), in which case nothing is written.
func NewPersister(store storage.Store, sudo *access.Sudo, chats *Chats, model *pace.Model, log logx.Logger) *Persister {
	p := &Persister{
		store: store,
		sudo:  sudo,
		chats: chats,
		pace:  model,
		log:   log,
		kick:  make(chan struct{}, 1),
	}
	sudo.OnChange(p.MarkSudo)
	chats.OnChange(p.MarkChats)
	model.OnChange(p.MarkChats)
	return p
}

// Load restores both records. Missing or corrupt data leaves the defaults
// (owners only, no known chats) in place and is logged, not returned.
func (p *Persister) Load(ctx context.Context) {
	if p.store == nil {
		return
	}
	ids, err := p.store.LoadSudo(ctx)
	if err != nil {
		p.logLoadErr("sudo", err)
	} else {
		p.sudo.Load(ids)
	}

	st, err := p.store.LoadChats(ctx)
	if err != nil {
		p.logLoadErr("chats", err)
		return
	}
	p.chats.Load(st.Known)
	delays := make(map[int64]time.Duration, len(st.Delays))
	for id, sec := range st.Delays {
		delays[id] = pace.FromSeconds(sec)
	}
	p.pace.Load(delays)
	p.log.Info("state loaded",
		logx.Int("sudo", len(p.sudo.Members())),
		logx.Int("chats", p.chats.Len()),
		logx.Int("delays", len(delays)),
	)
}

func (p *Persister) logLoadErr(record string, err error) {
	if errors.Is(err, storage.ErrCorrupt) {
		p.log.Warn("stored record unreadable, using defaults", logx.String("record", record), logx.Err(err))
		return
	}
	p.log.Error("load record failed, using defaults", logx.String("record", record), logx.Err(err))
}

func (p *Persister) MarkSudo() {
	p.sudoDirty.Store(true)
	p.poke()
}

func (p *Persister) MarkChats() {
	p.chatsDirty.Store(true)
	p.poke()
}

// MarkAll schedules a write of both records (periodic checkpoint).
func (p *Persister) MarkAll() {
	p.sudoDirty.Store(true)
	p.chatsDirty.Store(true)
	p.poke()
}

func (p *Persister) poke() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run flushes on every change until ctx is done, then flushes once more.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return p.Flush(fctx)
		case <-p.kick:
			if err := p.Flush(ctx); err != nil {
				p.log.Warn("state flush failed", logx.Err(err))
			}
		}
	}
}

// Flush writes whichever records are dirty.
func (p *Persister) Flush(ctx context.Context) error {
	if p.store == nil {
		p.sudoDirty.Store(false)
		p.chatsDirty.Store(false)
		return nil
	}
	var errs []error
	if p.sudoDirty.Swap(false) {
		if err := p.store.SaveSudo(ctx, p.sudo.Members()); err != nil {
			p.sudoDirty.Store(true)
			errs = append(errs, err)
		}
	}
	if p.chatsDirty.Swap(false) {
		if err := p.store.SaveChats(ctx, p.snapshot()); err != nil {
			p.chatsDirty.Store(true)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Persister) snapshot() storage.ChatState {
	over := p.pace.Overrides()
	st := storage.ChatState{Known: p.chats.List(), Delays: make(map[int64]float64, len(over))}
	for id, d := range over {
		st.Delays[id] = pace.Seconds(d)
	}
	return st
}
