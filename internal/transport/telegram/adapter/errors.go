package adapter

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"pacebot/internal/invoke"
)

var retryAfterRe = regexp.MustCompile(`(?i)retry after (\d+)`)

// classify tags Telegram errors for the invoker: flood control becomes
// invoke.RateLimited with the server hint, network and 5xx failures become
// invoke.Transient, everything else is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if invoke.IsRetryable(err) {
		return err
	}

	if wait, ok := floodWait(err); ok {
		return invoke.RateLimited(err, wait)
	}
	if code, ok := apiCode(err); ok {
		switch {
		case code == 429:
			return invoke.RateLimited(err, 0)
		case code >= 500:
			return invoke.Transient(err)
		}
		return err
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return invoke.Transient(err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return invoke.Transient(err)
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return invoke.Transient(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too many requests"):
		return invoke.RateLimited(err, 0)
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "eof"):
		return invoke.Transient(err)
	}
	return err
}

// floodWait walks the chain looking for telebot's flood error or a
// "retry after N" message.
func floodWait(err error) (time.Duration, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch fe := any(e).(type) {
		case tele.FloodError:
			return time.Duration(fe.RetryAfter) * time.Second, true
		case *tele.FloodError:
			return time.Duration(fe.RetryAfter) * time.Second, true
		}
	}
	if m := retryAfterRe.FindStringSubmatch(err.Error()); m != nil {
		n, _ := strconv.Atoi(m[1])
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

func apiCode(err error) (int, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if te, ok := any(e).(*tele.Error); ok && te != nil {
			return te.Code, true
		}
	}
	return 0, false
}
