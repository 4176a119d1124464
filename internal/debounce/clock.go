package debounce

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Clock for tests: time only moves when Advance is called,
// firing due timers in deadline order on the calling goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManualClock creates a ManualClock starting at an arbitrary fixed time.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(1700000000, 0)}
}

// AfterFunc registers f to fire once the clock has advanced past d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward and fires every due, unstopped timer in
// deadline order. Callbacks run without the clock lock held, so they may
// arm new timers.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDue()
		if t == nil {
			return
		}
		t.fn()
	}
}

// nextDue pops the earliest due timer, marking it fired.
func (c *ManualClock) nextDue() *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})

	for _, t := range c.timers {
		if t.fired || t.stopped {
			continue
		}
		if t.deadline.After(c.now) {
			return nil
		}
		t.fired = true
		return t
	}
	return nil
}
