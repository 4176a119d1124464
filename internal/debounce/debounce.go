// Package debounce provides a keyed debounce primitive: arming a key delays
// its callback until a quiet period with no further arms has elapsed.
// Re-arming a key cancels the previously scheduled fire, so any number of
// back-to-back arms coalesce into a single callback.
package debounce

import (
	"sync"
	"time"
)

// Timer is a cancelable scheduled callback.
type Timer interface {
	// Stop cancels the timer. Returns false if the timer already fired or
	// was stopped.
	Stop() bool
}

// Clock schedules callbacks. The real clock wraps time.AfterFunc; tests
// substitute a ManualClock to avoid wall-clock sleeps.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

// RealClock returns a Clock backed by time.AfterFunc.
func RealClock() Clock { return realClock{} }

type entry struct {
	timer Timer
	gen   uint64
}

// Debouncer coalesces bursts of arms per key. Safe for concurrent use.
type Debouncer struct {
	clock Clock

	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
}

// New creates a Debouncer on the given clock.
func New(clock Clock) *Debouncer {
	return &Debouncer{
		clock:   clock,
		entries: make(map[string]*entry),
	}
}

// Arm schedules fn to run after delay, cancelling any timer previously
// armed for the same key. A generation counter guards the window where a
// timer has fired but its callback has not yet run: if the key was re-armed
// in that window, the stale callback is abandoned, so a fire can never race
// a fresh arrival.
func (d *Debouncer) Arm(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
	}

	d.gen++
	gen := d.gen
	e := &entry{gen: gen}
	e.timer = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		cur, ok := d.entries[key]
		if !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.entries, key)
		d.mu.Unlock()
		fn()
	})
	d.entries[key] = e
}

// Cancel stops any pending timer for key. Returns true if a timer was
// pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.entries, key)
	return true
}

// Pending reports whether a timer is currently armed for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}
