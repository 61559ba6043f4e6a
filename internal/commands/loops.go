package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pacebot/internal/actions"
	"pacebot/internal/pace"
	"pacebot/internal/task/loop"
	"pacebot/internal/task/registry"
	"pacebot/internal/transport/telegram/router"
	logx "pacebot/pkg/logx"
)

// parseCount applies the count rules and replies on rejection.
func (h *Handlers) parseCount(ctx context.Context, req *router.Request, limit int) (loop.Count, []string, bool) {
	count, payload, err := loop.ParseCount(req.Args, limit)
	switch {
	case errors.Is(err, loop.ErrCountTooLarge):
		_ = reply(ctx, req, fmt.Sprintf("Count too large. Max per-invocation: %d", limit))
		return count, nil, false
	case err != nil:
		_ = reply(ctx, req, "Count must be a positive number, 0 or inf")
		return count, nil, false
	}
	return count, payload, true
}

func countLabel(c loop.Count, unit string) string {
	if c.IsUnbounded() {
		return "infinite"
	}
	return fmt.Sprintf("%d %s", c.N(), unit)
}

// parseInterval reads seconds. ok is false when s is not a number.
func parseInterval(s string) (time.Duration, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return pace.FromSeconds(v), true
}

// start picks a client and starts kind in the requesting chat. Failures are
// answered in chat and returned for logging.
func (h *Handlers) start(ctx context.Context, req *router.Request, kind actions.Kind, p actions.Params) error {
	client, err := h.act.PickClient()
	if err == nil {
		_, err = h.act.StartWorker(ctx, kind, req.Chat.ChatID, client, p)
	}
	if err != nil {
		_ = reply(ctx, req, h.startFailure(err))
		return err
	}
	return nil
}

func (h *Handlers) startFailure(err error) string {
	switch {
	case errors.Is(err, actions.ErrIntervalLow):
		return "Interval too low; minimum " + secs(h.act.MinDelay())
	case errors.Is(err, actions.ErrEmptyText):
		return "No text provided."
	case errors.Is(err, actions.ErrEmptyImage):
		return "No image provided."
	case errors.Is(err, actions.ErrNoClient):
		return "No bot client available."
	case errors.Is(err, actions.ErrNoAssets):
		return fmt.Sprintf("No images found in '%s/'. Add images and retry.", h.assetsDir)
	case errors.Is(err, registry.ErrClosed):
		return "Shutting down."
	default:
		return "Failed to start: " + err.Error()
	}
}

func (h *Handlers) spam(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return reply(ctx, req, "Usage: /spam <count|inf> <text>")
	}
	count, payload, ok := h.parseCount(ctx, req, int(h.textCap.Load()))
	if !ok {
		return nil
	}
	text := strings.Join(payload, " ")
	if strings.TrimSpace(text) == "" {
		return reply(ctx, req, "No text provided to spam.")
	}
	if err := h.start(ctx, req, actions.KindSpam, actions.Params{Text: text, Count: count}); err != nil {
		return err
	}
	return reply(ctx, req, "✅ Text spam started ("+countLabel(count, "msgs")+")")
}

// photo downloads the photo of the replied-to message through the bot that
// received the command.
func (h *Handlers) photo(ctx context.Context, req *router.Request, usage string) ([]byte, bool, error) {
	r := req.Message.ReplyTo
	if r == nil || r.PhotoFileID == "" {
		return nil, false, reply(ctx, req, usage)
	}
	img, err := h.act.Fetch(ctx, req.Chat.ChatID, req.Adapter, r.PhotoFileID)
	if err != nil {
		_ = reply(ctx, req, "Could not download the photo.")
		return nil, false, err
	}
	return img, true, nil
}

func (h *Handlers) imagespam(ctx context.Context, req *router.Request) error {
	const usage = "Reply to a photo and use /imagespam <count|inf>"
	if r := req.Message.ReplyTo; r == nil || r.PhotoFileID == "" {
		return reply(ctx, req, usage)
	}
	if len(req.Args) == 0 {
		return reply(ctx, req, "Usage: /imagespam <count|inf>")
	}
	count, _, ok := h.parseCount(ctx, req, int(h.imageCap.Load()))
	if !ok {
		return nil
	}
	img, ok, err := h.photo(ctx, req, usage)
	if !ok {
		return err
	}
	if err := h.start(ctx, req, actions.KindImageSpam, actions.Params{Image: img, Count: count}); err != nil {
		return err
	}
	return reply(ctx, req, "📸 Image spam started ("+countLabel(count, "imgs")+")")
}

func (h *Handlers) dpchange(ctx context.Context, req *router.Request) error {
	img, ok, err := h.photo(ctx, req, "Reply to a photo and use /dpchange")
	if !ok {
		return err
	}
	if err := h.start(ctx, req, actions.KindDPChange, actions.Params{Image: img}); err != nil {
		return err
	}
	return reply(ctx, req, "🌀 DP/PFP auto-change started (infinite). Use /stoppfp to stop.")
}

func (h *Handlers) playlist(ctx context.Context, req *router.Request) error {
	if !h.act.HasAssets() {
		return reply(ctx, req, h.startFailure(actions.ErrNoAssets))
	}
	var p actions.Params
	if len(req.Args) > 0 {
		iv, ok := parseInterval(req.Args[0])
		if !ok {
			return reply(ctx, req, "Invalid interval")
		}
		p.Interval = iv
	}
	if err := h.start(ctx, req, actions.KindPlaylist, p); err != nil {
		return err
	}
	every := h.act.GetDelay(req.Chat.ChatID)
	if p.Interval > 0 {
		every = p.Interval.Seconds()
	}
	return reply(ctx, req, "📸 PFP playlist started every "+secs(every))
}

func (h *Handlers) rename(ctx context.Context, req *router.Request) error {
	text := req.Text()
	if strings.TrimSpace(text) == "" {
		return reply(ctx, req, "Usage: /rename <text>")
	}
	if err := h.act.Rename(ctx, req.Chat.ChatID, text); err != nil {
		_ = reply(ctx, req, "Rename failed: "+err.Error())
		return err
	}
	return reply(ctx, req, "✅ Renamed")
}

func (h *Handlers) autorename(ctx context.Context, req *router.Request) error {
	if len(req.Args) < 2 {
		return reply(ctx, req, "Usage: /autorename <interval_seconds> <text>")
	}
	iv, ok := parseInterval(req.Args[0])
	if !ok {
		return reply(ctx, req, "Invalid interval")
	}
	text := strings.Join(req.Args[1:], " ")
	if err := h.start(ctx, req, actions.KindAutoRename, actions.Params{Text: text, Interval: iv}); err != nil {
		return err
	}
	return reply(ctx, req, "🔁 Autorename started every "+secs(iv.Seconds())+" (use /stoprnm to stop)")
}

func (h *Handlers) ultrarnm(ctx context.Context, req *router.Request) error {
	text := req.Text()
	if strings.TrimSpace(text) == "" {
		return reply(ctx, req, "Usage: /ultrarnm <text>")
	}
	if err := h.start(ctx, req, actions.KindUltraRename, actions.Params{Text: text}); err != nil {
		return err
	}
	return reply(ctx, req, "⚡ Ultra rename started (use /stop to stop)")
}

func (h *Handlers) spnc(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return reply(ctx, req, "Usage: /spnc <count|inf> <text>")
	}
	count, payload, ok := h.parseCount(ctx, req, int(h.textCap.Load()))
	if !ok {
		return nil
	}
	text := strings.Join(payload, " ")
	if strings.TrimSpace(text) == "" {
		return reply(ctx, req, "No text provided.")
	}
	if err := h.start(ctx, req, actions.KindSpnc, actions.Params{Text: text, Count: count}); err != nil {
		return err
	}
	return reply(ctx, req, "✅ /spnc started ("+count.String()+")")
}

// all starts the rename and photo halves under one client. A trailing
// number is the photo interval; everything before it is the title text.
func (h *Handlers) all(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return reply(ctx, req, "Usage: /all <rename_text> [pfp_interval]")
	}
	args := req.Args
	var interval time.Duration
	if len(args) >= 2 {
		if _, err := strconv.ParseFloat(args[len(args)-1], 64); err == nil {
			iv, ok := parseInterval(args[len(args)-1])
			if !ok {
				return reply(ctx, req, "Invalid pfp interval")
			}
			interval = iv
			args = args[:len(args)-1]
		}
	}
	client, err := h.act.PickClient()
	if err == nil {
		_, err = h.act.StartAll(ctx, req.Chat.ChatID, client, strings.Join(args, " "), interval)
	}
	if err != nil {
		_ = reply(ctx, req, h.startFailure(err))
		return err
	}
	return reply(ctx, req, "✅ /all started ~ rename + pfp playlist (use /stop)")
}

func (h *Handlers) stopKinds(done string, kinds ...actions.Kind) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		n := h.act.CancelMatching(ctx, registry.ForDestKinds(req.Chat.ChatID, kinds...))
		req.Logger.Debug("tasks cancelled", logx.Int("count", n))
		return reply(ctx, req, done)
	}
}

func (h *Handlers) stopAll(ctx context.Context, req *router.Request) error {
	h.act.CancelMatching(ctx, registry.ForDest(req.Chat.ChatID))
	return reply(ctx, req, "⛔ Stopped all loops in this chat")
}
