// Package clock abstracts time so that timers and TTLs can be driven by a
// virtual clock in tests.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped the
	// timer; false means the callback already ran or was already stopped.
	Stop() bool
}

// Scheduler runs callbacks after a delay and reports the current time.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Timer
}

// Real is a Scheduler backed by the runtime's timers.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// After runs fn on its own goroutine once d has elapsed.
func (Real) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
