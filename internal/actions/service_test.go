package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacebot/internal/clientpool"
	"pacebot/internal/invoke"
	"pacebot/internal/pace"
	"pacebot/internal/task/loop"
	"pacebot/internal/task/registry"
	"pacebot/internal/transport"
)

type call struct {
	op   string
	dest int64
	arg  string
}

// fakeRemote records calls. failAt makes the n-th call (1-based) fail
// terminally; blockAfter makes calls beyond it wait for cancellation.
type fakeRemote struct {
	mu         sync.Mutex
	calls      []call
	failAt     int
	blockAfter int
	reached    chan struct{}
	once       sync.Once
}

func newFakeRemote() *fakeRemote { return &fakeRemote{reached: make(chan struct{})} }

func (f *fakeRemote) record(ctx context.Context, c call) error {
	f.mu.Lock()
	n := len(f.calls) + 1
	if f.blockAfter > 0 && n > f.blockAfter {
		f.mu.Unlock()
		f.once.Do(func() { close(f.reached) })
		<-ctx.Done()
		return ctx.Err()
	}
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if n == f.failAt {
		return errors.New("chat admin required")
	}
	return nil
}

func (f *fakeRemote) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeRemote) SendText(ctx context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	return transport.MessageRef{ChatID: to.ChatID}, f.record(ctx, call{"text", to.ChatID, text})
}

func (f *fakeRemote) SendPhoto(ctx context.Context, to transport.ChatTarget, img []byte, _ string) (transport.MessageRef, error) {
	return transport.MessageRef{ChatID: to.ChatID}, f.record(ctx, call{"photo", to.ChatID, string(img)})
}

func (f *fakeRemote) SetChatTitle(ctx context.Context, chatID int64, title string) error {
	return f.record(ctx, call{"title", chatID, title})
}

func (f *fakeRemote) SetChatPhoto(ctx context.Context, chatID int64, img []byte) error {
	return f.record(ctx, call{"chatphoto", chatID, string(img)})
}

func (f *fakeRemote) LeaveChat(ctx context.Context, chatID int64) error {
	return f.record(ctx, call{"leave", chatID, ""})
}

func (f *fakeRemote) DownloadFile(context.Context, string) ([]byte, error) { return nil, nil }

type memAssets struct {
	mu    sync.Mutex
	names []string
}

func (m *memAssets) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...), nil
}

func (m *memAssets) Read(name string) ([]byte, error) { return []byte(name), nil }

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestService(t *testing.T, assets Assets, remotes ...transport.Remote) (*Service, *registry.Registry, *pace.Model) {
	t.Helper()
	model := pace.New(50 * time.Millisecond)
	inv := invoke.New(model, invoke.DefaultConfig(), invoke.WithSleeper(noSleep))
	reg := registry.New(context.Background())
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	svc := NewService(reg, clientpool.New(remotes), inv, assets,
		WithSleeper(noSleep),
		WithEmojis(func(n int) []string {
			out := make([]string, n)
			for i := range out {
				out[i] = fmt.Sprintf("e%d", i)
			}
			return out
		}),
	)
	return svc, reg, model
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBoundedSpamScenario(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	svc, reg, _ := newTestService(t, nil, remote)
	const dest = int64(-100200)

	h, err := svc.StartWorker(testCtx(t), KindSpam, dest, 0, Params{Text: "hi", Count: loop.Bounded(3)})
	require.NoError(t, err)
	assert.Equal(t, registry.Key{Client: 0, Dest: dest, Kind: KindSpam}, h.Key)
	assert.Equal(t, 0.05, svc.GetDelay(dest))

	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	calls := remote.snapshot()
	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Equal(t, call{"text", dest, "hi"}, c)
	}
	assert.Empty(t, svc.ListActive(registry.ForDestKinds(dest, KindSpam)))
}

func TestRotatingCursorSurvivesFailure(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.failAt = 4
	remote.blockAfter = 7
	assets := &memAssets{names: []string{"a.jpg", "b.jpg", "c.jpg"}}
	svc, _, _ := newTestService(t, assets, remote)

	_, err := svc.StartWorker(testCtx(t), KindPlaylist, 7, 0, Params{})
	require.NoError(t, err)

	select {
	case <-remote.reached:
	case <-time.After(3 * time.Second):
		t.Fatal("playlist did not reach 7 iterations")
	}

	var got []string
	for _, c := range remote.snapshot() {
		got = append(got, c.arg)
	}
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg", "a.jpg", "b.jpg", "c.jpg", "a.jpg"}, got)
	assert.Equal(t, 1, svc.CancelMatching(testCtx(t), registry.ForDest(7)))
}

func TestPlaylistIdlesOnEmptyList(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.blockAfter = 1
	assets := &memAssets{}
	svc, _, _ := newTestService(t, assets, remote)

	_, err := svc.StartWorker(testCtx(t), KindAllPFP, 9, 0, Params{})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, remote.snapshot())

	assets.mu.Lock()
	assets.names = []string{"x.png"}
	assets.mu.Unlock()

	require.Eventually(t, func() bool { return len(remote.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "x.png", remote.snapshot()[0].arg)
	svc.CancelMatching(testCtx(t), registry.All())
}

func TestTitleShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind Kind
		want []string
	}{
		{KindAutoRename, []string{"gc 1", "gc 2"}},
		{KindUltraRename, []string{"e0 e1 e2 gc e3 e4 e5", "e0 e1 e2 gc e3 e4 e5"}},
		{KindAllRename, []string{"e0 gc e1 1", "e0 gc e1 2"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			remote := newFakeRemote()
			remote.blockAfter = 2
			svc, _, _ := newTestService(t, nil, remote)

			p := Params{Text: "gc"}
			if tc.kind == KindAutoRename {
				p.Interval = time.Second
			}
			_, err := svc.StartWorker(testCtx(t), tc.kind, 1, 0, p)
			require.NoError(t, err)
			<-remote.reached

			var got []string
			for _, c := range remote.snapshot() {
				assert.Equal(t, "title", c.op)
				got = append(got, c.arg)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSpncSendsThenRenames(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	svc, reg, _ := newTestService(t, nil, remote)

	_, err := svc.StartWorker(testCtx(t), KindSpnc, 4, 0, Params{Text: "yo", Count: loop.Bounded(2)})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []call{
		{"text", 4, "yo"}, {"title", 4, "yo 1"},
		{"text", 4, "yo"}, {"title", 4, "yo 2"},
	}, remote.snapshot())
}

func TestStartAllRegistersTwoTasks(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.blockAfter = 1
	svc, _, _ := newTestService(t, &memAssets{names: []string{"a.jpg"}}, remote)

	hs, err := svc.StartAll(testCtx(t), 11, 0, "gc", 0)
	require.NoError(t, err)
	require.Len(t, hs, 2)

	keys := svc.ListActive(registry.ForDest(11))
	assert.Equal(t, []registry.Key{
		{Dest: 11, Kind: KindAllPFP},
		{Dest: 11, Kind: KindAllRename},
	}, keys)

	assert.True(t, svc.Cancel(testCtx(t), registry.Key{Dest: 11, Kind: KindAllRename}))
	assert.Equal(t, []registry.Key{{Dest: 11, Kind: KindAllPFP}}, svc.ListActive(registry.ForDest(11)))
	svc.CancelMatching(testCtx(t), registry.ForDest(11))
}

func TestStartWorkerValidation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, nil, newFakeRemote())
	ctx := testCtx(t)

	_, err := svc.StartWorker(ctx, KindSpam, 1, 0, Params{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = svc.StartWorker(ctx, KindImageSpam, 1, 0, Params{})
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, err = svc.StartWorker(ctx, KindAutoRename, 1, 0, Params{Text: "x", Interval: time.Millisecond})
	assert.ErrorIs(t, err, ErrIntervalLow)
	_, err = svc.StartWorker(ctx, KindSpam, 1, 5, Params{Text: "x"})
	assert.ErrorIs(t, err, ErrNoClient)
	_, err = svc.StartWorker(ctx, "bogus", 1, 0, Params{})
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = svc.StartWorker(ctx, KindPlaylist, 1, 0, Params{})
	assert.ErrorIs(t, err, ErrNoAssets)
}

func TestDelayRoundTrip(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, nil)
	require.NoError(t, svc.SetDelay(3, 1.5))
	assert.Equal(t, 1.5, svc.GetDelay(3))
	assert.ErrorIs(t, svc.SetDelay(3, 0.01), pace.ErrBelowMin)
}

func TestAnnounceCountsFailures(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.failAt = 2
	svc, _, _ := newTestService(t, nil, remote)

	rep, err := svc.Announce(testCtx(t), []int64{1, 2, 3}, "news")
	require.NoError(t, err)
	assert.Equal(t, AnnounceReport{Sent: 2, Failed: 1}, rep)
}

func TestLeaveAllSkipsKeep(t *testing.T) {
	t.Parallel()

	a, b := newFakeRemote(), newFakeRemote()
	svc, _, _ := newTestService(t, nil, a, b)

	left := svc.LeaveAll(testCtx(t), []int64{1, 2, 3}, 2)
	assert.Equal(t, []int64{1, 3}, left)
	assert.Len(t, a.snapshot(), 2)
	assert.Len(t, b.snapshot(), 2)
}

func TestRenameUsesInvoker(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.failAt = 1
	svc, _, _ := newTestService(t, nil, remote)

	err := svc.Rename(testCtx(t), 5, "new title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat admin required")

	empty, _, _ := newTestService(t, nil)
	assert.ErrorIs(t, empty.Rename(testCtx(t), 5, "x"), ErrNoClient)
}

func TestDirAssetsFiltersAndSorts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", "c.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755))

	d := DirAssets{Dir: dir}
	names, err := d.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.PNG", "c.webp"}, names)

	b, err := d.Read("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", string(b))

	_, err = d.Read("../etc/passwd")
	assert.Error(t, err)

	missing, err := DirAssets{Dir: filepath.Join(dir, "nope")}.List()
	require.NoError(t, err)
	assert.Empty(t, missing)
}
