package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/dstore/internal/clock"
)

// FakeClock is a manually advanced clock.Clock for tests.
//
// Timers never fire on their own. Advance moves time forward and runs every
// callback whose deadline has been reached, in deadline order, on the
// calling goroutine. Callbacks run without the clock's lock held, so they
// may schedule new timers.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int64
	timers []*FakeTimer
}

// FakeTimer is a timer created by FakeClock.AfterFunc.
type FakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	seq      int64
	fn       func()
	done     bool
}

// NewFakeClock creates a clock starting at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock has advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &FakeTimer{clock: c, deadline: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d and fires due timers.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		c.now = next.deadline
		c.removeLocked(next)
		c.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Stop cancels the timer.
func (t *FakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	c.removeLocked(t)
	return true
}

func (c *FakeClock) nextDueLocked(target time.Time) *FakeTimer {
	due := make([]*FakeTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.deadline.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}

func (c *FakeClock) removeLocked(t *FakeTimer) {
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}
