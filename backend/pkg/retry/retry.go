// Package retry runs bounded attempts with a fixed delay between them.
package retry

import (
	"context"
	"time"
)

// Sleeper pauses between attempts. Tests swap it for one that returns immediately.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to a Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// RealSleeper waits on a timer, returning early if ctx is cancelled.
var RealSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error { //nolint:gochecknoglobals // Stateless default
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// Policy bounds a retry loop.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Sleeper  Sleeper
}

// Do calls fn until it reports done, the attempts run out, or ctx is cancelled. The delay is
// applied only between attempts. It returns the last value, whether it succeeded, and the
// number of attempts made.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, bool)) (T, bool, int) {
	var (
		v  T
		ok bool
	)

	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = RealSleeper
	}

	attempts := max(p.Attempts, 1)

	for i := 1; i <= attempts; i++ {
		v, ok = fn(ctx, i)
		if ok {
			return v, true, i
		}

		if i == attempts {
			return v, false, i
		}

		if err := sleeper.Sleep(ctx, p.Delay); err != nil {
			return v, false, i
		}
	}

	return v, false, attempts
}
