package commands

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"pacebot/internal/access"
	kit "pacebot/internal/transport"
	"pacebot/internal/transport/telegram/router"
	logx "pacebot/pkg/logx"
	"pacebot/pkg/tgui"
)

func replyTarget(req *router.Request) (int64, bool) {
	r := req.Message.ReplyTo
	if r == nil || r.FromID == 0 {
		return 0, false
	}
	return r.FromID, true
}

func (h *Handlers) slidespam(ctx context.Context, req *router.Request) error {
	uid, ok := replyTarget(req)
	if !ok {
		return reply(ctx, req, "Reply to a message and use /slidespam <text>")
	}
	text := strings.TrimSpace(req.Text())
	if text == "" {
		return reply(ctx, req, "Usage: /slidespam <text>")
	}
	h.slides.Add(uid, text)
	return reply(ctx, req, "✅ Slidespam target added (bot replies once when target posts)")
}

func (h *Handlers) slidestop(ctx context.Context, req *router.Request) error {
	uid, ok := replyTarget(req)
	if !ok {
		return reply(ctx, req, "Reply to a message and use /slidestop")
	}
	h.slides.Remove(uid)
	return reply(ctx, req, "⛔ Slidespam target removed")
}

func (h *Handlers) announce(ctx context.Context, req *router.Request) error {
	msg := req.Text()
	if strings.TrimSpace(msg) == "" {
		return reply(ctx, req, "Usage: /announce <message>")
	}
	targets := h.chats.List()
	if len(targets) == 0 {
		return reply(ctx, req, "No known chats.")
	}
	if err := reply(ctx, req, fmt.Sprintf("Sending to %d known chats (rate-limited).", len(targets))); err != nil {
		return err
	}
	rep, err := h.act.Announce(ctx, targets, msg)
	req.Logger.Info("announce finished", logx.Int("sent", rep.Sent), logx.Int("failed", rep.Failed), logx.Err(err))
	if err != nil {
		return err
	}
	return reply(ctx, req, fmt.Sprintf("📢 Announce done: %d sent, %d failed", rep.Sent, rep.Failed))
}

// autoleave makes the bot that received the command leave the chat.
func (h *Handlers) autoleave(ctx context.Context, req *router.Request) error {
	dest := req.Chat.ChatID
	_ = reply(ctx, req, "👋 Leaving this group...")
	if err := h.act.Leave(ctx, req.Client, dest); err != nil {
		_ = reply(ctx, req, "Failed to leave: "+err.Error())
		return err
	}
	h.chats.Forget(dest)
	return nil
}

const scopeLeaveAll = "leaveall"

// autoleaveAll asks for confirmation before leaving every other known chat.
func (h *Handlers) autoleaveAll(ctx context.Context, req *router.Request) error {
	n := len(h.chats.List())
	if h.chats.Contains(req.Chat.ChatID) {
		n--
	}
	if n <= 0 {
		return reply(ctx, req, "No other known chats.")
	}
	yes, err := tgui.Data(scopeLeaveAll, "yes", strconv.FormatInt(req.Chat.ChatID, 10))
	if err != nil {
		return err
	}
	no, _ := tgui.Data(scopeLeaveAll, "no", "")
	_, err = req.Adapter.SendText(ctx, req.Chat, fmt.Sprintf("Leave %d known chats? This chat stays.", n), &kit.SendOptions{
		ReplyTo:            req.Message.ID,
		ReplyMarkupAdapter: tgui.Confirm("✅ Leave", yes, "✖ Cancel", no),
	})
	return err
}

// confirmLeaveAll handles the buttons sent by autoleaveAll.
func (h *Handlers) confirmLeaveAll(ctx context.Context, req *router.Request) error {
	cq := req.Update.Callback
	ref := kit.MessageRef{ChatID: cq.ChatID, ThreadID: cq.ThreadID, MessageID: cq.MessageID}
	action, payload := req.Args[0], req.Args[1]

	if action != "yes" {
		_ = req.Adapter.AnswerCallback(ctx, cq.ID, "Cancelled")
		return req.Adapter.EditText(ctx, ref, "Cancelled.", nil)
	}
	keep, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		_ = req.Adapter.AnswerCallback(ctx, cq.ID, "Bad request")
		return err
	}
	_ = req.Adapter.AnswerCallback(ctx, cq.ID, "Leaving...")
	left := h.act.LeaveAll(ctx, h.chats.List(), keep)
	h.chats.Forget(left...)
	return req.Adapter.EditText(ctx, ref, fmt.Sprintf("Left %d groups. Stayed here.", len(left)), nil)
}

func (h *Handlers) addsudo(ctx context.Context, req *router.Request) error {
	uid, ok := replyTarget(req)
	if !ok {
		return reply(ctx, req, "Reply to a user's message to add sudo.")
	}
	h.sudo.Add(uid)
	return reply(ctx, req, "✅ Added sudo: "+strconv.FormatInt(uid, 10))
}

func (h *Handlers) delsudo(ctx context.Context, req *router.Request) error {
	uid, ok := replyTarget(req)
	if !ok {
		return reply(ctx, req, "Reply to a user's message to remove sudo.")
	}
	if h.sudo.IsOwner(uid) {
		return reply(ctx, req, "Owners cannot be removed.")
	}
	h.sudo.Remove(uid)
	return reply(ctx, req, "✅ Removed sudo: "+strconv.FormatInt(uid, 10))
}

func (h *Handlers) listsudo(ctx context.Context, req *router.Request) error {
	ids := append(h.sudo.Owners(), h.sudo.Members()...)
	return reply(ctx, req, "SUDO USERS:\n"+joinIDs(ids, "\n"))
}

func (h *Handlers) owner(ctx context.Context, req *router.Request) error {
	return reply(ctx, req, "Owner: "+joinIDs(h.sudo.Owners(), ", "))
}

func joinIDs(ids []int64, sep string) string {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, sep)
}

var _ router.Guard = (*access.Sudo)(nil)
