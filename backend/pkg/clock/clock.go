// Package clock provides the wrapping millisecond counter the scheduler runs on.
package clock

import (
	"time"
)

// Stamp is a monotonic millisecond counter value since boot. It wraps after ~49.7 days.
type Stamp uint32

// Clock supplies the current Stamp.
type Clock interface {
	Now() Stamp
}

// Monotonic is a Clock backed by the Go monotonic clock, counting from its creation.
type Monotonic struct {
	start time.Time
}

// NewMonotonic starts a new counter at zero.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

func (m *Monotonic) Now() Stamp {
	return Stamp(uint64(time.Since(m.start).Milliseconds()))
}

// Millis converts a duration to a Stamp delta, saturating at the counter range.
func Millis(d time.Duration) Stamp {
	ms := d.Milliseconds()
	switch {
	case ms <= 0:
		return 0
	case ms > int64(^Stamp(0)):
		return ^Stamp(0)
	default:
		return Stamp(ms)
	}
}

// Mark is a "last happened" timestamp that starts out as never.
type Mark struct {
	at  Stamp
	set bool
}

// Set records now as the last occurrence.
func (m *Mark) Set(now Stamp) {
	m.at = now
	m.set = true
}

// Due reports whether period has elapsed since the mark. A mark that never happened is always
// due, and so is one that lies ahead of now, which only happens after the counter wrapped.
func (m Mark) Due(now, period Stamp) bool {
	if !m.set {
		return true
	}

	return Due(m.at, now, period)
}

// Due is the wraparound-safe elapsed check for a trigger last fired at last.
func Due(last, now, period Stamp) bool {
	if last > now {
		return true
	}

	return now-last >= period
}
