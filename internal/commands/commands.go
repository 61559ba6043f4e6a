// Package commands implements the chat commands on top of the action
// service and the access sets.
package commands

import (
	"strconv"
	"sync/atomic"
	"time"

	"pacebot/internal/access"
	"pacebot/internal/actions"
	"pacebot/internal/state"
	"pacebot/internal/transport/telegram/router"
	logx "pacebot/pkg/logx"
)

type Deps struct {
	Actions *actions.Service
	Sudo    *access.Sudo
	Slides  *access.Slides
	Chats   *state.Chats
	// AssetsDir is only used in replies.
	AssetsDir string
	TextCap   int
	ImageCap  int
	Log       logx.Logger
}

type Handlers struct {
	act       *actions.Service
	sudo      *access.Sudo
	slides    *access.Slides
	chats     *state.Chats
	assetsDir string
	log       logx.Logger

	textCap  atomic.Int64
	imageCap atomic.Int64
	now      func() time.Time
}

func New(d Deps) *Handlers {
	h := &Handlers{
		act:       d.Actions,
		sudo:      d.Sudo,
		slides:    d.Slides,
		chats:     d.Chats,
		assetsDir: d.AssetsDir,
		log:       d.Log,
		now:       time.Now,
	}
	if h.log.IsZero() {
		h.log = logx.Nop()
	}
	h.SetLimits(d.TextCap, d.ImageCap)
	return h
}

// SetLimits updates the per-invocation count caps. Safe during hot reload.
func (h *Handlers) SetLimits(text, image int) {
	h.textCap.Store(int64(text))
	h.imageCap.Store(int64(image))
}

// Commands returns the full command table in menu order.
func (h *Handlers) Commands() []router.Command {
	const quick = 15 * time.Second
	const fetch = 60 * time.Second
	sudo, owner, all := router.AccessSudo, router.AccessOwner, router.AccessEveryone

	return []router.Command{
		{Name: "ping", Description: "round-trip check", Access: all, Timeout: quick, Handle: h.ping},
		{Name: "status", Description: "tasks and delay in this chat", Access: all, Timeout: quick, Handle: h.status},
		{Name: "speed", Usage: "/speed [sec]", Description: "show or set this chat's delay", Access: sudo, Timeout: quick, Handle: h.speed},

		{Name: "spam", Usage: "/spam <count|inf> <text>", Description: "repeat a text message", Access: sudo, Timeout: quick, Handle: h.spam},
		{Name: "stopspm", Description: "stop text spam", Access: sudo, Timeout: quick, Handle: h.stopKinds("⛔ Text spam stopped", actions.KindSpam)},
		{Name: "imagespam", Usage: "/imagespam <count|inf> (reply to photo)", Description: "repeat a photo", Access: sudo, Timeout: fetch, Handle: h.imagespam},
		{Name: "stopimgspm", Description: "stop image spam", Access: sudo, Timeout: quick, Handle: h.stopKinds("⛔ Image spam stopped", actions.KindImageSpam)},
		{Name: "dpchange", Usage: "/dpchange (reply to photo)", Description: "keep setting the chat photo", Access: sudo, Timeout: fetch, Handle: h.dpchange},
		{Name: "stoppfp", Description: "stop every chat photo loop", Access: sudo, Timeout: quick, Handle: h.stopKinds("⛔ DP/PFP change stopped", actions.PhotoKinds...)},
		{Name: "changepfp_playlist_start", Usage: "/changepfp_playlist_start [sec]", Description: "rotate photos from the asset folder", Access: sudo, Timeout: quick, Handle: h.playlist},
		{Name: "changepfp_playlist_stop", Description: "stop the photo playlist", Access: sudo, Timeout: quick, Handle: h.stopKinds("⛔ PFP playlist stopped", actions.KindPlaylist)},

		{Name: "rename", Usage: "/rename <text>", Description: "set the chat title once", Access: sudo, Timeout: 2 * time.Minute, Handle: h.rename},
		{Name: "autorename", Usage: "/autorename <sec> <text>", Description: "numbered titles on an interval", Access: sudo, Timeout: quick, Handle: h.autorename},
		{Name: "stoprnm", Description: "stop autorename", Access: sudo, Timeout: quick, Handle: h.stopKinds("⛔ Autorename stopped", actions.KindAutoRename)},
		{Name: "ultrarnm", Usage: "/ultrarnm <text>", Description: "emoji-framed titles as fast as allowed", Access: sudo, Timeout: quick, Handle: h.ultrarnm},
		{Name: "spnc", Usage: "/spnc <count|inf> <text>", Description: "send and rename each round", Access: sudo, Timeout: quick, Handle: h.spnc},
		{Name: "stopspnc", Description: "stop spnc", Access: sudo, Timeout: quick, Handle: h.stopKinds("⛔ /spnc stopped", actions.KindSpnc)},
		{Name: "all", Usage: "/all <text> [pfp_interval]", Description: "rename and photo playlist together", Access: sudo, Timeout: quick, Handle: h.all},
		{Name: "stop", Description: "stop every loop in this chat", Access: sudo, Timeout: quick, Handle: h.stopAll},

		{Name: "slidespam", Usage: "/slidespam <text> (reply)", Description: "auto-reply to a user", Access: sudo, Timeout: quick, Handle: h.slidespam},
		{Name: "slidestop", Usage: "/slidestop (reply)", Description: "stop auto-replying to a user", Access: sudo, Timeout: quick, Handle: h.slidestop},

		{Name: "announce", Usage: "/announce <msg>", Description: "send to every known chat", Access: owner, Handle: h.announce},
		{Name: "autoleavegc", Description: "leave this chat", Access: sudo, Timeout: time.Minute, Handle: h.autoleave},
		{Name: "autoleaveallgc", Description: "leave every other known chat", Access: owner, Handle: h.autoleaveAll},
		{Name: "addsudo", Usage: "/addsudo (reply)", Description: "grant sudo", Access: owner, Timeout: quick, Handle: h.addsudo},
		{Name: "delsudo", Usage: "/delsudo (reply)", Description: "revoke sudo", Access: owner, Timeout: quick, Handle: h.delsudo},
		{Name: "listsudo", Description: "list sudo users", Access: all, Timeout: quick, Handle: h.listsudo},
		{Name: "owner", Description: "show the owners", Access: all, Timeout: quick, Handle: h.owner},
	}
}

// Callbacks returns the inline button handlers.
func (h *Handlers) Callbacks() []router.Callback {
	return []router.Callback{
		{Scope: scopeLeaveAll, Access: router.AccessOwner, Handle: h.confirmLeaveAll},
	}
}

func secs(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) + "s" }
