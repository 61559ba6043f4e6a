package router

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

func newReqID() string { return ulid.Make().String() }

// parseCommand splits "/name@bot arg1 arg2" into a lowercase name and
// whitespace-separated args. Commands are matched case-insensitively so
// "/Stopspm" and "/stopspm" route the same.
func parseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	name = strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

const defaultDedupWindow = 2 * time.Minute

type dedupKey struct {
	chat int64
	msg  int
}

// dedup remembers (chat, message) pairs for a window. Every bot in a group
// receives the same message, and only the first delivery is routed.
type dedup struct {
	window time.Duration

	mu   sync.Mutex
	seen map[dedupKey]time.Time
}

func newDedup(window time.Duration) *dedup {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &dedup{window: window, seen: map[dedupKey]time.Time{}}
}

// first reports whether this is the first sighting inside the window.
func (d *dedup) first(chat int64, msg int, now time.Time) bool {
	k := dedupKey{chat: chat, msg: msg}
	d.mu.Lock()
	defer d.mu.Unlock()
	if at, ok := d.seen[k]; ok && now.Sub(at) < d.window {
		return false
	}
	d.seen[k] = now
	return true
}

func (d *dedup) prune(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
		}
	}
}

func (d *dedup) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
