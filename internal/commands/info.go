package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pacebot/internal/task/registry"
	kit "pacebot/internal/transport"
	"pacebot/internal/transport/telegram/router"
	logx "pacebot/pkg/logx"
)

func (h *Handlers) ping(ctx context.Context, req *router.Request) error {
	start := h.now()
	ref, err := req.Reply(ctx, "🏓 Pinging...")
	if err != nil {
		return err
	}
	ms := h.now().Sub(start).Milliseconds()
	return req.Adapter.EditText(ctx, ref, fmt.Sprintf("🏓 Pong: %d ms", ms), nil)
}

func (h *Handlers) status(ctx context.Context, req *router.Request) error {
	dest := req.Chat.ChatID
	keys := h.act.ListActive(registry.ForDest(dest))
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
	}
	tasks := "none"
	if len(names) > 0 {
		tasks = strings.Join(names, ", ")
	}
	text := strings.Join([]string{
		"📊 STATUS",
		"Chat: " + strconv.FormatInt(dest, 10),
		"Active tasks: " + strconv.Itoa(len(keys)),
		"Tasks: " + tasks,
		"Known chats: " + strconv.Itoa(h.chats.Len()),
		"Delay: " + secs(h.act.GetDelay(dest)),
		"Clients: " + strconv.Itoa(h.act.Pool().Len()),
	}, "\n")
	_, err := req.Reply(ctx, text)
	return err
}

func (h *Handlers) speed(ctx context.Context, req *router.Request) error {
	dest := req.Chat.ChatID
	if len(req.Args) == 0 {
		return reply(ctx, req, "Current delay: "+secs(h.act.GetDelay(dest)))
	}
	v, err := strconv.ParseFloat(req.Args[0], 64)
	if err != nil {
		return reply(ctx, req, "Enter a numeric value (seconds)")
	}
	if v < h.act.MinDelay() {
		return reply(ctx, req, "Min delay is "+secs(h.act.MinDelay()))
	}
	if err := h.act.SetDelay(dest, v); err != nil {
		_ = reply(ctx, req, "Min delay is "+secs(h.act.MinDelay()))
		return err
	}
	return reply(ctx, req, "Delay set to "+secs(v)+" for this chat")
}

// Observe registers every chat the bots hear from.
func (h *Handlers) Observe(msg *kit.Message) {
	if msg == nil || msg.ChatID == 0 {
		return
	}
	if h.chats.Register(msg.ChatID) {
		h.log.Debug("chat registered", logx.Int64("chat_id", msg.ChatID))
	}
}

// AutoReply answers messages from slide targets. It is the router fallback
// for non-command messages.
func (h *Handlers) AutoReply(ctx context.Context, req *router.Request) error {
	text, ok := h.slides.Lookup(req.FromID)
	if !ok {
		return nil
	}
	_, err := req.Reply(ctx, text)
	return err
}

// reply sends text and returns only a delivery error.
func reply(ctx context.Context, req *router.Request, text string) error {
	_, err := req.Reply(ctx, text)
	return err
}
