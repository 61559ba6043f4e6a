package router

import (
	"context"
	"strings"
	"time"

	kit "pacebot/internal/transport"
	logx "pacebot/pkg/logx"
	"pacebot/pkg/tgui"
)

const defaultCallbackTimeout = 2 * time.Minute

// Callback handles inline button presses whose data has the form
// "scope:action:payload" (see tgui.Data). The handler gets a Request with
// Command set to the scope and Args to [action, payload].
type Callback struct {
	Scope  string
	Access Access
	Handle HandlerFunc
}

// SetCallbacks replaces the callback table.
func (r *Router) SetCallbacks(cbs []Callback) {
	table := make(map[string]*Callback, len(cbs))
	for i := range cbs {
		cb := cbs[i]
		scope := strings.ToLower(strings.TrimSpace(cb.Scope))
		if scope == "" || cb.Handle == nil {
			continue
		}
		cb.Scope = scope
		table[scope] = &cb
	}
	r.mu.Lock()
	r.callbacks = table
	r.mu.Unlock()
}

// routeCallback dispatches a button press. Only the bot that sent the
// keyboard receives the press, so callbacks skip deduplication.
func (r *Router) routeCallback(up kit.Update) {
	cq := up.Callback
	ad, ok := r.adapter(up.Client)
	if !ok {
		return
	}
	scope, action, payload, ok := tgui.Parse(cq.Data)
	r.mu.RLock()
	cb, known := r.callbacks[strings.ToLower(scope)]
	r.mu.RUnlock()
	if !ok || !known {
		r.enqueue(func(c context.Context) { _ = ad.AnswerCallback(c, cq.ID, "") })
		return
	}

	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: cq.ChatID, ThreadID: cq.ThreadID},
		FromID:  cq.FromID,
		Client:  up.Client,
		Command: cb.Scope,
		Args:    []string{action, payload},
		ReqID:   newReqID(),
		Adapter: ad,
	}
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", cq.ChatID),
		logx.Int64("from_id", cq.FromID),
		logx.String("callback", cb.Scope+":"+action),
	)

	if !r.allowed(cb.Access, cq.FromID) {
		req.Logger.Info("callback denied", logx.String("access", cb.Access.String()))
		r.enqueue(func(c context.Context) { _ = ad.AnswerCallback(c, cq.ID, "❌ Not allowed.") })
		return
	}

	mws := []Middleware{MWPanicRecover(r.log), MWRequestLog(r.log)}
	if cb.Access != AccessEveryone && r.audit != nil {
		mws = append(mws, MWAudit(r.audit, r.log))
	}
	mws = append(mws, MWTimeout(defaultCallbackTimeout))
	final := Chain(cb.Handle, mws...)
	if !r.enqueue(func(c context.Context) { _ = final(c, req) }) {
		req.Logger.Warn("command queue full; callback dropped")
	}
}
