package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock for tests. Time stands still until
// Advance is called.
//
// AfterFunc callbacks run synchronously on the goroutine calling Advance,
// in deadline order. A callback may schedule further timers; those fire in
// the same Advance call only if their deadline is within the advanced
// window. Do not call Advance from inside a callback.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeTimer
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	callback func()
	done     bool // fired or stopped
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run once the clock advances by d. If d <= 0,
// f runs immediately on the calling goroutine.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	t := &fakeTimer{clock: c, deadline: c.current.Add(d), callback: f}
	if d <= 0 {
		t.done = true
		c.mu.Unlock()
		f()
		return t
	}
	c.waiters = append(c.waiters, t)
	c.mu.Unlock()
	return t
}

// Advance moves the clock forward by d, firing every due callback.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.current = target
			c.mu.Unlock()
			return
		}
		c.current = next.deadline
		next.done = true
		c.mu.Unlock()

		next.callback()
	}
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.done {
			n++
		}
	}
	return n
}

// nextDueLocked returns the earliest live timer due at or before target and
// drops finished timers. Caller holds c.mu.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeTimer {
	live := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.done {
			live = append(live, w)
		}
	}
	c.waiters = live

	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})
	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}
	return c.waiters[0]
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}
