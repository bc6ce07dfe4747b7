// Package timing provides the timestamp capture and validation used by
// the receiver and keyers: entry points take an optional caller-supplied
// time.Time, fall back to time.Now() when it is nil (OrNow), and reject
// a timestamp that does not move forward (Validate).
package timing

import (
	"errors"
	"time"
)

// ErrNonMonotonic is returned when a caller-supplied timestamp is not
// strictly after the previous one seen by the same stream.
var ErrNonMonotonic = errors.New("timing: timestamp not monotonic")

// Now returns the current monotonic timestamp. It is a thin wrapper so
// the rest of the library has one seam to mock in tests.
func Now() time.Time {
	return time.Now()
}

// DiffMicros returns the duration from start to end in microseconds.
// Negative results are possible if the caller misuses it; Validate
// should be used first on any externally supplied timestamp pair.
func DiffMicros(start, end time.Time) int64 {
	return end.Sub(start).Microseconds()
}

// Validate checks that ts is strictly after prev (if prev is non-zero).
// A zero prev means "no previous timestamp yet" and always validates.
func Validate(prev, ts time.Time) error {
	if prev.IsZero() {
		return nil
	}
	if !ts.After(prev) {
		return ErrNonMonotonic
	}
	return nil
}

// OrNow returns ts if it is non-nil, otherwise the current time. A nil
// timestamp means "use now" for the straight_key/paddle/mark_begin/
// mark_end entry points, which accept an optional timestamp.
func OrNow(ts *time.Time) time.Time {
	if ts == nil {
		return Now()
	}
	return *ts
}
