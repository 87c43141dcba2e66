// Package clock abstracts wall-clock time and timers so that debounce
// windows can be driven deterministically in tests.
package clock

import "time"

// Clock is the source of time and timers for the store.
//
// Thread-safety: implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time

	// AfterFunc runs f in its own goroutine once d has elapsed, unless the
	// returned Timer is stopped first.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

// System returns the real clock backed by package time.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
