package router

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacebot/internal/storage"
	kit "pacebot/internal/transport"
)

type sent struct {
	chat    int64
	text    string
	replyTo int
}

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []sent
	answers []string
}

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := sent{chat: to.ChatID, text: text}
	if opt != nil {
		s.replyTo = opt.ReplyTo
	}
	f.sent = append(f.sent, s)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.text)
	}
	return out
}

func (f *fakeAdapter) SendPhoto(context.Context, kit.ChatTarget, []byte, string) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}
func (f *fakeAdapter) SetChatTitle(context.Context, int64, string) error { return nil }
func (f *fakeAdapter) SetChatPhoto(context.Context, int64, []byte) error { return nil }
func (f *fakeAdapter) LeaveChat(context.Context, int64) error { return nil }
func (f *fakeAdapter) DownloadFile(context.Context, string) ([]byte, error) { return nil, nil }
func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error { return nil }
func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) answered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.answers...)
}

type fakeGuard struct{ owner, sudo int64 }

func (g fakeGuard) IsOwner(id int64) bool { return id == g.owner }
func (g fakeGuard) IsSudo(id int64) bool  { return id == g.owner || id == g.sudo }

type memAudit struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

func (m *memAudit) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func msgUpdate(client int, chat int64, id int, from int64, text string) kit.Update {
	return kit.Update{
		Kind:   kit.UpdateMessage,
		Client: client,
		Message: &kit.Message{
			ID: id, ChatID: chat, FromID: from, Text: text, IsGroup: true,
		},
	}
}

func startRouter(t *testing.T, r *Router) chan kit.Update {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return updates
}

func TestParseCommand(t *testing.T) {
	name, args, ok := parseCommand("/Stopspm@pace_bot  now  please ")
	require.True(t, ok)
	assert.Equal(t, "stopspm", name)
	assert.Equal(t, []string{"now", "please"}, args)

	_, _, ok = parseCommand("hello /spam")
	assert.False(t, ok)
	_, _, ok = parseCommand("/")
	assert.False(t, ok)
}

func TestDedupWindow(t *testing.T) {
	d := newDedup(time.Minute)
	now := time.Now()
	assert.True(t, d.first(1, 10, now))
	assert.False(t, d.first(1, 10, now.Add(time.Second)))
	assert.True(t, d.first(2, 10, now))
	assert.True(t, d.first(1, 10, now.Add(2*time.Minute)))

	d.prune(now.Add(5 * time.Minute))
	assert.Equal(t, 0, d.len())
}

func TestDuplicateDeliveryRunsOnce(t *testing.T) {
	a0, a1 := &fakeAdapter{}, &fakeAdapter{}
	r := New([]kit.Adapter{a0, a1}, fakeGuard{owner: 1})
	var calls atomic.Int32
	var client atomic.Int32
	r.SetCommands([]Command{{
		Name: "ping",
		Handle: func(_ context.Context, req *Request) error {
			calls.Add(1)
			client.Store(int32(req.Client))
			return nil
		},
	}})
	updates := startRouter(t, r)

	updates <- msgUpdate(1, -100, 5, 9, "/ping")
	updates <- msgUpdate(0, -100, 5, 9, "/ping")

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), client.Load())
}

func TestAccessDenied(t *testing.T) {
	a := &fakeAdapter{}
	r := New([]kit.Adapter{a}, fakeGuard{owner: 1, sudo: 2})
	var ran atomic.Bool
	handler := func(context.Context, *Request) error {
		ran.Store(true)
		return nil
	}
	r.SetCommands([]Command{
		{Name: "spam", Access: AccessSudo, Handle: handler},
		{Name: "announce", Access: AccessOwner, Handle: handler},
	})
	updates := startRouter(t, r)

	updates <- msgUpdate(0, -1, 1, 3, "/spam 1 hi")
	updates <- msgUpdate(0, -1, 2, 2, "/announce hi")

	require.Eventually(t, func() bool { return len(a.texts()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"❌ Sudo/Owner only.", "❌ Owner-only command."}, a.texts())
	assert.False(t, ran.Load())
}

func TestPrivilegedCommandsAreAudited(t *testing.T) {
	a := &fakeAdapter{}
	audit := &memAudit{}
	r := New([]kit.Adapter{a}, fakeGuard{owner: 1}, WithAuditor(audit))
	r.SetCommands([]Command{
		{Name: "speed", Access: AccessSudo, Handle: func(context.Context, *Request) error { return nil }},
		{Name: "ping", Handle: func(context.Context, *Request) error { return nil }},
	})
	updates := startRouter(t, r)

	updates <- msgUpdate(0, -7, 1, 1, "/speed 2")
	updates <- msgUpdate(0, -7, 2, 1, "/ping")

	require.Eventually(t, func() bool { return audit.len() == 1 }, time.Second, 5*time.Millisecond)
	audit.mu.Lock()
	e := audit.entries[0]
	audit.mu.Unlock()
	assert.Equal(t, "speed", e.Command)
	assert.Equal(t, "2", e.Args)
	assert.Equal(t, int64(-7), e.ChatID)
	assert.True(t, e.OK)
}

func TestObserverAndFallback(t *testing.T) {
	a := &fakeAdapter{}
	var observed, fell atomic.Int32
	r := New([]kit.Adapter{a}, fakeGuard{},
		WithObserver(func(*kit.Message) { observed.Add(1) }),
		WithFallback(func(context.Context, *Request) error {
			fell.Add(1)
			return nil
		}),
	)
	r.SetCommands(nil)
	updates := startRouter(t, r)

	updates <- msgUpdate(0, -1, 1, 5, "hello")
	updates <- msgUpdate(0, -1, 2, 5, "/unknown")
	updates <- msgUpdate(0, -1, 3, 5, "/help")

	require.Eventually(t, func() bool { return len(a.texts()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return fell.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), observed.Load())
	assert.Contains(t, a.texts()[0], "/help")
}

func TestHelpMarksLockedCommands(t *testing.T) {
	r := New(nil, fakeGuard{owner: 1})
	r.SetCommands([]Command{
		{Name: "spam", Usage: "/spam <count|inf> <text>", Access: AccessSudo, Handle: func(context.Context, *Request) error { return nil }},
	})
	assert.Contains(t, r.helpText(5), "🔒 • <code>/spam &lt;count|inf&gt; &lt;text&gt;</code>")
	assert.NotContains(t, r.helpText(1), "🔒")
}

func TestBuildMenu(t *testing.T) {
	menu := buildMenu([]*Command{
		{Name: "changepfp_playlist_start", Description: "rotate photos", Access: AccessSudo},
		{Name: "ping"},
		{Name: "ping"},
	})
	require.Len(t, menu, 2)
	assert.Equal(t, "changepfp_playlist_start", menu[0].Command)
	assert.Equal(t, "🔒 rotate photos", menu[0].Description)
	assert.Equal(t, "ping", menu[1].Description)
}

func TestCallbackRouting(t *testing.T) {
	ad := &fakeAdapter{}
	audit := &memAudit{}
	r := New([]kit.Adapter{ad}, fakeGuard{owner: 1}, WithAuditor(audit))

	var got atomic.Value
	r.SetCallbacks([]Callback{{
		Scope:  "leaveall",
		Access: AccessOwner,
		Handle: func(ctx context.Context, req *Request) error {
			got.Store(req.Command + "/" + req.Args[0] + "/" + req.Args[1])
			return req.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, "ok")
		},
	}})
	updates := startRouter(t, r)

	press := func(from int64, data string) {
		updates <- kit.Update{
			Kind:     kit.UpdateCallback,
			Callback: &kit.Callback{ID: "cb", FromID: from, ChatID: -5, MessageID: 3, Data: data},
		}
	}

	press(9, "leaveall:yes:-5")
	require.Eventually(t, func() bool { return len(ad.answered()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "❌ Not allowed.", ad.answered()[0])
	assert.Nil(t, got.Load())

	press(1, "leaveall:yes:-5")
	require.Eventually(t, func() bool { return got.Load() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "leaveall/yes/-5", got.Load())
	require.Eventually(t, func() bool { return audit.len() == 1 }, time.Second, 5*time.Millisecond)

	press(1, "other:thing")
	require.Eventually(t, func() bool { return len(ad.answered()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "", ad.answered()[2])
}
