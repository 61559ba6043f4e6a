package adapter

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacebot/internal/invoke"
	logx "pacebot/pkg/logx"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyRetryAfterMessage(t *testing.T) {
	err := classify(errors.New("telegram: Too Many Requests: retry after 7 (429)"))
	require.True(t, invoke.IsRateLimited(err))
	wait, ok := invoke.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, wait)
}

func TestClassifyNetwork(t *testing.T) {
	assert.True(t, invoke.IsTransient(classify(timeoutErr{})))
	assert.True(t, invoke.IsTransient(classify(&url.Error{Op: "Post", URL: "https://api", Err: errors.New("refused")})))
	assert.True(t, invoke.IsTransient(classify(fmt.Errorf("send: %w", errors.New("unexpected EOF")))))
}

func TestClassifyTerminal(t *testing.T) {
	base := errors.New("telegram: Bad Request: chat not found (400)")
	err := classify(base)
	assert.Same(t, base, err)
	assert.False(t, invoke.IsRetryable(err))
	assert.Nil(t, classify(nil))
}

func TestClassifyKeepsTaggedErrors(t *testing.T) {
	tagged := invoke.RateLimited(errors.New("x"), 3*time.Second)
	assert.Equal(t, tagged, classify(tagged))
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 10))

	long := strings.Repeat("a", 25)
	chunks := splitText(long, 10)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), "aaaaa"}, chunks)

	withBreak := "aaaaaaa\nbbbbbbbbbb"
	assert.Equal(t, []string{"aaaaaaa", "bbbbbbbbbb"}, splitText(withBreak, 10))
}

func TestNewRejectsEmptyToken(t *testing.T) {
	_, err := New(Config{Token: "  "}, logx.Nop())
	require.Error(t, err)
}
