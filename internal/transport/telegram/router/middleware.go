package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"pacebot/internal/storage"
	logx "pacebot/pkg/logx"
)

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if p := recover(); p != nil {
					logger := log
					if req != nil && !req.Logger.IsZero() {
						logger = req.Logger
					}
					logger.Error("panic recovered",
						logx.Any("panic", p),
						logx.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("panic: %v", p)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			logger := log
			if !req.Logger.IsZero() {
				logger = req.Logger
			}
			err := next(ctx, req)
			d := time.Since(start)

			fields := []logx.Field{
				logx.Int("args", len(req.Args)),
				logx.Duration("dur", d),
			}
			switch {
			case err != nil:
				logger.Warn("request failed", append(fields, logx.Err(err))...)
			case d >= 750*time.Millisecond:
				logger.Info("request ok", fields...)
			default:
				logger.Debug("request ok", fields...)
			}
			return err
		}
	}
}

// MWAudit appends one audit entry per handled request. Audit failures are
// logged and never fail the command.
func MWAudit(a Auditor, log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)

			e := storage.AuditEntry{
				At:      start.UTC(),
				ActorID: req.FromID,
				ChatID:  req.Chat.ChatID,
				Client:  req.Client,
				Command: req.Command,
				Args:    truncate(strings.Join(req.Args, " "), 512),
				OK:      err == nil,
				TookMS:  time.Since(start).Milliseconds(),
			}
			if req.Message != nil {
				e.ActorUsername = req.Message.FromUsername
			}
			if err != nil {
				e.Error = err.Error()
			}
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			if aerr := a.AppendAudit(actx, e); aerr != nil {
				log.Warn("audit append failed", logx.String("cmd", req.Command), logx.Err(aerr))
			}
			cancel()
			return err
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
