// Package loop runs the one iteration shape every action worker shares:
// perform, sleep the current delay, repeat until the count or the context ends.
package loop

import (
	"context"
	"errors"
	"time"

	logx "pacebot/pkg/logx"
)

// ErrIdle tells Run there was nothing to do this round. The round is not
// counted and the loop sleeps before trying again.
var ErrIdle = errors.New("nothing to do")

type Spec struct {
	Name  string
	Count Count

	// Perform runs iteration iter (0-based, counting only non-idle rounds).
	Perform func(ctx context.Context, iter int) error
	// Delay is read after every round.
	Delay func() time.Duration
	// ErrorPause is slept in addition to Delay after a failed round. Optional.
	ErrorPause func() time.Duration

	Log   logx.Logger
	Sleep func(ctx context.Context, d time.Duration) error
}

type Result struct {
	Iterations int
	Failures   int
	// Err is the context error when the loop was cancelled, else nil.
	Err error
}

func Run(ctx context.Context, s Spec) Result {
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	delay := s.Delay
	if delay == nil {
		delay = func() time.Duration { return 0 }
	}

	var res Result
	for !s.Count.Done(res.Iterations) {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		err := s.Perform(ctx, res.Iterations)
		switch {
		case errors.Is(err, ErrIdle):
		case err != nil:
			if ctx.Err() != nil {
				res.Err = ctx.Err()
				return res
			}
			res.Iterations++
			res.Failures++
			s.Log.Debug("iteration failed", logx.String("loop", s.Name), logx.Int("iter", res.Iterations), logx.Err(err))
			if s.ErrorPause != nil {
				if err := sleep(ctx, s.ErrorPause()); err != nil {
					res.Err = err
					return res
				}
			}
		default:
			res.Iterations++
		}

		if s.Count.Done(res.Iterations) {
			break
		}
		if err := sleep(ctx, delay()); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
