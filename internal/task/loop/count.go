package loop

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrCountTooLarge = errors.New("count exceeds limit")
	ErrInvalidCount  = errors.New("invalid count")
)

// Count is either Bounded(n) with n > 0, or Unbounded.
type Count struct {
	n int
}

func Bounded(n int) Count { return Count{n: n} }

var Unbounded = Count{}

func (c Count) IsUnbounded() bool { return c.n <= 0 }

// N returns the bound, or 0 when unbounded.
func (c Count) N() int { return max(c.n, 0) }

// Done reports whether iter completed iterations exhaust the count.
func (c Count) Done(iter int) bool { return !c.IsUnbounded() && iter >= c.n }

func (c Count) String() string {
	if c.IsUnbounded() {
		return "inf"
	}
	return strconv.Itoa(c.n)
}

// ParseCount reads an optional leading count from args and returns the rest as
// payload words.
//
//   - "inf" (any case) or "0": Unbounded, payload args[1:]
//   - n > 0: Bounded(n), ErrCountTooLarge when n > limit (limit <= 0 means no limit)
//   - n < 0: ErrInvalidCount
//   - anything else: Unbounded, payload is all of args
func ParseCount(args []string, limit int) (Count, []string, error) {
	if len(args) == 0 {
		return Unbounded, nil, nil
	}
	head := strings.TrimSpace(args[0])
	if strings.EqualFold(head, "inf") {
		return Unbounded, args[1:], nil
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return Unbounded, args, nil
	}
	switch {
	case n == 0:
		return Unbounded, args[1:], nil
	case n < 0:
		return Unbounded, nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	case limit > 0 && n > limit:
		return Unbounded, nil, fmt.Errorf("%w: %d > %d", ErrCountTooLarge, n, limit)
	}
	return Bounded(n), args[1:], nil
}
