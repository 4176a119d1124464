package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArm_FiresAfterQuietPeriod(t *testing.T) {
	clock := NewManualClock()
	d := New(clock)

	fired := 0
	d.Arm("k", 1500*time.Millisecond, func() { fired++ })

	clock.Advance(1 * time.Second)
	assert.Equal(t, 0, fired, "must not fire before the quiet period elapses")

	clock.Advance(1 * time.Second)
	assert.Equal(t, 1, fired)
	assert.False(t, d.Pending("k"))
}

func TestArm_ReArmCoalesces(t *testing.T) {
	clock := NewManualClock()
	d := New(clock)

	fired := 0
	// Five back-to-back arrivals, each within the quiet period of the last.
	for i := 0; i < 5; i++ {
		d.Arm("burst", 1500*time.Millisecond, func() { fired++ })
		clock.Advance(500 * time.Millisecond)
	}
	assert.Equal(t, 0, fired)

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1, fired, "a continuous run of arms must coalesce into exactly one fire")
}

func TestArm_IndependentKeys(t *testing.T) {
	clock := NewManualClock()
	d := New(clock)

	var got []string
	d.Arm("a", time.Second, func() { got = append(got, "a") })
	d.Arm("b", 2*time.Second, func() { got = append(got, "b") })

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestArm_SecondRunFiresAgain(t *testing.T) {
	clock := NewManualClock()
	d := New(clock)

	fired := 0
	d.Arm("k", time.Second, func() { fired++ })
	clock.Advance(time.Second)
	assert.Equal(t, 1, fired)

	// A later, separate run of arrivals gets its own fire.
	d.Arm("k", time.Second, func() { fired++ })
	clock.Advance(time.Second)
	assert.Equal(t, 2, fired)
}

func TestCancel(t *testing.T) {
	clock := NewManualClock()
	d := New(clock)

	fired := false
	d.Arm("k", time.Second, func() { fired = true })
	assert.True(t, d.Cancel("k"))
	assert.False(t, d.Cancel("k"), "second cancel finds nothing pending")

	clock.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestArm_StaleFireAbandonedAfterReArm(t *testing.T) {
	// A timer whose Stop raced its fire must not run its callback once the
	// key has been re-armed: the generation check abandons it.
	clock := NewManualClock()
	d := New(clock)

	fired := 0
	d.Arm("k", time.Second, func() { fired++ })

	// Steal the scheduled callback and re-arm before invoking it, simulating
	// a fire that lost the race with a fresh arrival.
	clock.mu.Lock()
	stale := clock.timers[0]
	clock.mu.Unlock()

	d.Arm("k", time.Second, func() { fired++ })
	stale.fn()
	assert.Equal(t, 0, fired, "stale fire must be abandoned")

	clock.Advance(time.Second)
	assert.Equal(t, 1, fired)
}

func TestDebouncer_ConcurrentArms(t *testing.T) {
	d := New(RealClock())

	var mu sync.Mutex
	fired := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Arm("k", 10*time.Millisecond, func() {
				mu.Lock()
				fired++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == 1
	}, time.Second, 5*time.Millisecond)
}
