// Package actions turns each action kind into a configured worker loop and
// exposes the operations the command layer uses to start and stop them.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pacebot/internal/clientpool"
	"pacebot/internal/invoke"
	"pacebot/internal/pace"
	"pacebot/internal/task/loop"
	"pacebot/internal/task/registry"
	"pacebot/internal/transport"
	logx "pacebot/pkg/logx"
)

var (
	ErrNoClient    = errors.New("no client available")
	ErrUnknownKind = errors.New("unknown action kind")
	ErrEmptyText   = errors.New("no text provided")
	ErrEmptyImage  = errors.New("no image provided")
	ErrNoAssets    = errors.New("no images in asset directory")
	ErrIntervalLow = errors.New("interval below minimum")
)

// Params carries the per-start arguments. Which fields matter depends on the kind.
type Params struct {
	Text  string
	Image []byte
	Count loop.Count
	// Interval overrides the destination delay when non-zero.
	Interval time.Duration
}

type Option func(*Service)

func WithLogger(log logx.Logger) Option { return func(s *Service) { s.log = log } }

func WithEmojis(e Emojis) Option {
	return func(s *Service) {
		if e != nil {
			s.emojis = e
		}
	}
}

// WithSleeper replaces the loop sleep. Tests use it to run loops without waiting.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = fn }
}

type Service struct {
	reg     *registry.Registry
	pool    *clientpool.Pool
	inv     *invoke.Invoker
	pace    *pace.Model
	assets  Assets
	cursors *Cursors

	emojis Emojis
	sleep  func(ctx context.Context, d time.Duration) error
	log    logx.Logger
}

func NewService(reg *registry.Registry, pool *clientpool.Pool, inv *invoke.Invoker, assets Assets, opts ...Option) *Service {
	s := &Service{
		reg:     reg,
		pool:    pool,
		inv:     inv,
		pace:    inv.Pace(),
		assets:  assets,
		cursors: NewCursors(),
		emojis:  RandomEmojis,
		log:     logx.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Pool() *clientpool.Pool { return s.pool }
func (s *Service) Cursors() *Cursors      { return s.cursors }

// PickClient selects the client a new task will keep for its lifetime.
func (s *Service) PickClient() (int, error) {
	if s.pool.Len() == 0 {
		return 0, ErrNoClient
	}
	return s.pool.Select(), nil
}

// StartWorker registers a worker for kind at (client, dest), replacing any
// worker already running under that key.
func (s *Service) StartWorker(ctx context.Context, kind Kind, dest int64, client int, p Params) (registry.Handle, error) {
	remote, ok := s.pool.Client(client)
	if !ok {
		return registry.Handle{}, fmt.Errorf("%w: index %d", ErrNoClient, client)
	}
	key := registry.Key{Client: client, Dest: dest, Kind: kind}
	spec, err := s.build(key, remote, p)
	if err != nil {
		return registry.Handle{}, err
	}
	log := s.log.With(logx.String("task", key.String()))
	spec.Log = log
	spec.Sleep = s.sleep

	return s.reg.Start(ctx, key, func(ctx context.Context) error {
		defer s.cursors.Drop(key)
		log.Info("worker started", logx.String("count", spec.Count.String()))
		res := loop.Run(ctx, spec)
		log.Info("worker stopped",
			logx.Int("iterations", res.Iterations),
			logx.Int("failures", res.Failures),
		)
		return res.Err
	})
}

// StartAll starts the rename and photo halves of the combined worker under
// one client. They are registered and stopped independently.
func (s *Service) StartAll(ctx context.Context, dest int64, client int, text string, interval time.Duration) ([]registry.Handle, error) {
	rh, err := s.StartWorker(ctx, KindAllRename, dest, client, Params{Text: text})
	if err != nil {
		return nil, err
	}
	ph, err := s.StartWorker(ctx, KindAllPFP, dest, client, Params{Interval: interval})
	if err != nil {
		s.reg.Cancel(ctx, rh.Key)
		return nil, err
	}
	return []registry.Handle{rh, ph}, nil
}

func (s *Service) build(key registry.Key, remote transport.Remote, p Params) (loop.Spec, error) {
	dest := key.Dest
	to := transport.ChatTarget{ChatID: dest}
	paceDelay := func() time.Duration { return s.pace.Delay(dest) }
	delay := paceDelay
	if p.Interval > 0 {
		if p.Interval < s.pace.Min() {
			return loop.Spec{}, fmt.Errorf("%w: %s < %s", ErrIntervalLow, p.Interval, s.pace.Min())
		}
		iv := p.Interval
		delay = func() time.Duration { return iv }
	}
	text := strings.TrimSpace(p.Text)

	spec := loop.Spec{
		Name:       string(key.Kind),
		Count:      loop.Unbounded,
		Delay:      delay,
		ErrorPause: delay,
	}
	do := func(ctx context.Context, call func(ctx context.Context) error) error {
		return s.inv.Do(ctx, dest, call)
	}

	switch key.Kind {
	case KindSpam:
		if text == "" {
			return spec, ErrEmptyText
		}
		spec.Count = p.Count
		spec.Perform = func(ctx context.Context, _ int) error {
			return do(ctx, func(ctx context.Context) error {
				_, err := remote.SendText(ctx, to, text, nil)
				return err
			})
		}

	case KindImageSpam:
		if len(p.Image) == 0 {
			return spec, ErrEmptyImage
		}
		spec.Count = p.Count
		img := p.Image
		spec.Perform = func(ctx context.Context, _ int) error {
			return do(ctx, func(ctx context.Context) error {
				_, err := remote.SendPhoto(ctx, to, img, "")
				return err
			})
		}

	case KindDPChange:
		if len(p.Image) == 0 {
			return spec, ErrEmptyImage
		}
		img := p.Image
		spec.Perform = func(ctx context.Context, _ int) error {
			return do(ctx, func(ctx context.Context) error {
				return remote.SetChatPhoto(ctx, dest, img)
			})
		}

	case KindAutoRename:
		if text == "" {
			return spec, ErrEmptyText
		}
		spec.Perform = func(ctx context.Context, iter int) error {
			title := fmt.Sprintf("%s %d", text, iter+1)
			return do(ctx, func(ctx context.Context) error {
				return remote.SetChatTitle(ctx, dest, title)
			})
		}

	case KindUltraRename:
		if text == "" {
			return spec, ErrEmptyText
		}
		spec.Perform = func(ctx context.Context, _ int) error {
			title := ultraTitle(s.emojis, text)
			return do(ctx, func(ctx context.Context) error {
				return remote.SetChatTitle(ctx, dest, title)
			})
		}

	case KindSpnc:
		if text == "" {
			return spec, ErrEmptyText
		}
		spec.Count = p.Count
		spec.Perform = func(ctx context.Context, iter int) error {
			if err := do(ctx, func(ctx context.Context) error {
				_, err := remote.SendText(ctx, to, text, nil)
				return err
			}); err != nil {
				return err
			}
			title := fmt.Sprintf("%s %d", text, iter+1)
			return do(ctx, func(ctx context.Context) error {
				return remote.SetChatTitle(ctx, dest, title)
			})
		}

	case KindAllRename:
		if text == "" {
			return spec, ErrEmptyText
		}
		spec.Delay, spec.ErrorPause = paceDelay, paceDelay
		spec.Perform = func(ctx context.Context, iter int) error {
			pair := s.emojis(2)
			for len(pair) < 2 {
				pair = append(pair, "")
			}
			title := strings.TrimSpace(fmt.Sprintf("%s %s %s %d", pair[0], text, pair[1], iter+1))
			return do(ctx, func(ctx context.Context) error {
				return remote.SetChatTitle(ctx, dest, title)
			})
		}

	case KindPlaylist, KindAllPFP:
		if s.assets == nil {
			return spec, ErrNoAssets
		}
		spec.Perform = s.rotate(key, remote)

	default:
		return spec, fmt.Errorf("%w: %q", ErrUnknownKind, key.Kind)
	}
	return spec, nil
}

// rotate sets the chat photo to the next asset. The cursor advances once per
// attempted iteration, whether or not the call succeeds.
func (s *Service) rotate(key registry.Key, remote transport.Remote) func(ctx context.Context, iter int) error {
	return func(ctx context.Context, _ int) error {
		names, err := s.assets.List()
		if err != nil {
			s.log.Warn("asset listing failed", logx.Err(err))
			return loop.ErrIdle
		}
		if len(names) == 0 {
			return loop.ErrIdle
		}
		name := names[s.cursors.Next(key)%len(names)]
		img, err := s.assets.Read(name)
		if err != nil {
			return fmt.Errorf("read asset %s: %w", name, err)
		}
		return s.inv.Do(ctx, key.Dest, func(ctx context.Context) error {
			return remote.SetChatPhoto(ctx, key.Dest, img)
		})
	}
}

// HasAssets reports whether the playlist directory currently has any images.
func (s *Service) HasAssets() bool {
	if s.assets == nil {
		return false
	}
	names, err := s.assets.List()
	return err == nil && len(names) > 0
}

func (s *Service) Cancel(ctx context.Context, key registry.Key) bool { return s.reg.Cancel(ctx, key) }

func (s *Service) CancelMatching(ctx context.Context, pred registry.Predicate) int {
	return s.reg.CancelMatching(ctx, pred)
}

func (s *Service) ListActive(pred registry.Predicate) []registry.Key { return s.reg.ListActive(pred) }

func (s *Service) SetDelay(dest int64, seconds float64) error {
	return s.pace.Set(dest, pace.FromSeconds(seconds))
}

func (s *Service) GetDelay(dest int64) float64 { return pace.Seconds(s.pace.Delay(dest)) }

// Rename sets the chat title once through the invoker.
func (s *Service) Rename(ctx context.Context, dest int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyText
	}
	c, err := s.PickClient()
	if err != nil {
		return err
	}
	remote, _ := s.pool.Client(c)
	return s.inv.Do(ctx, dest, func(ctx context.Context) error {
		return remote.SetChatTitle(ctx, dest, title)
	})
}

// Fetch downloads a file through r, retrying like any other remote call.
// File ids are scoped to the bot that saw them, so r must be that bot.
func (s *Service) Fetch(ctx context.Context, dest int64, r transport.Remote, fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, ErrEmptyImage
	}
	return invoke.Call(ctx, s.inv, dest, func(ctx context.Context) ([]byte, error) {
		return r.DownloadFile(ctx, fileID)
	})
}

// MinDelay returns the delay floor in seconds.
func (s *Service) MinDelay() float64 { return pace.Seconds(s.pace.Min()) }

// AnnounceReport summarizes a broadcast.
type AnnounceReport struct {
	Sent   int
	Failed int
}

// Announce sends text to every destination in order, each through the invoker
// with a freshly selected client, sleeping each destination's delay in between.
func (s *Service) Announce(ctx context.Context, dests []int64, text string) (AnnounceReport, error) {
	var rep AnnounceReport
	if strings.TrimSpace(text) == "" {
		return rep, ErrEmptyText
	}
	if s.pool.Len() == 0 {
		return rep, ErrNoClient
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = invoke.Sleep
	}
	for _, dest := range dests {
		remote, _ := s.pool.Client(s.pool.Select())
		err := s.inv.Do(ctx, dest, func(ctx context.Context) error {
			_, err := remote.SendText(ctx, transport.ChatTarget{ChatID: dest}, text, nil)
			return err
		})
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if err != nil {
			rep.Failed++
			s.log.Debug("announce failed", logx.Int64("dest", dest), logx.Err(err))
		} else {
			rep.Sent++
		}
		if err := sleep(ctx, s.pace.Delay(dest)); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// Leave makes the given client leave dest and stops every task there.
func (s *Service) Leave(ctx context.Context, client int, dest int64) error {
	remote, ok := s.pool.Client(client)
	if !ok {
		return ErrNoClient
	}
	s.reg.CancelMatching(ctx, registry.ForDest(dest))
	return remote.LeaveChat(ctx, dest)
}

// LeaveAll leaves every destination except keep and returns the ones left.
// Every client is asked to leave, since any of them may be a member.
func (s *Service) LeaveAll(ctx context.Context, dests []int64, keep int64) []int64 {
	var left []int64
	for _, dest := range dests {
		if dest == keep {
			continue
		}
		s.reg.CancelMatching(ctx, registry.ForDest(dest))
		ok := false
		for i := range s.pool.Len() {
			remote, _ := s.pool.Client(i)
			if err := remote.LeaveChat(ctx, dest); err == nil {
				ok = true
			} else {
				s.log.Debug("leave failed", logx.Int64("dest", dest), logx.Int("client", i), logx.Err(err))
			}
		}
		if ok {
			left = append(left, dest)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return left
}
