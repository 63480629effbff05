package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_FiresInTimestampOrder(t *testing.T) {
	c := NewFakeClock()
	var fired []string
	var firedAt []int64
	record := func(name string) func() {
		return func() {
			fired = append(fired, name)
			firedAt = append(firedAt, c.Msec())
		}
	}

	c.AfterFunc("c", 300*time.Millisecond, record("c"))
	c.AfterFunc("a", 100*time.Millisecond, record("a"))
	c.AfterFunc("b", 200*time.Millisecond, record("b"))
	c.AfterFunc("b2", 200*time.Millisecond, record("b2"))

	c.Advance(time.Second)

	assert.Equal(t, []string{"a", "b", "b2", "c"}, fired)
	assert.Equal(t, []int64{DefaultFakeStart + 100, DefaultFakeStart + 200, DefaultFakeStart + 200, DefaultFakeStart + 300}, firedAt)
	assert.Equal(t, DefaultFakeStart+1000, c.Msec())
}

func TestFakeClock_FiresTimersScheduledWhileFiring(t *testing.T) {
	c := NewFakeClock()
	var firedAt []int64
	var chain func()
	chain = func() {
		firedAt = append(firedAt, c.Msec())
		if len(firedAt) < 3 {
			c.AfterFunc("chain", 100*time.Millisecond, chain)
		}
	}
	c.AfterFunc("chain", 100*time.Millisecond, chain)

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, []int64{DefaultFakeStart + 100, DefaultFakeStart + 200}, firedAt)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []int64{DefaultFakeStart + 100, DefaultFakeStart + 200, DefaultFakeStart + 300}, firedAt)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeClock_ZeroDelayFiresOnAdvanceZero(t *testing.T) {
	c := NewFakeClock()
	called := false
	c.AfterFunc("now", 0, func() { called = true })
	assert.False(t, called)
	c.Advance(0)
	assert.True(t, called)
}

func TestFakeClock_Stop(t *testing.T) {
	c := NewFakeClock()
	called := false
	timer := c.AfterFunc("stopped", time.Second, func() { called = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(2 * time.Second)
	assert.False(t, called)
}

func TestDebouncer_ZeroWindowIsSynchronous(t *testing.T) {
	c := NewFakeClock()
	calls := 0
	d := NewDebouncer("test", c, 0, func() { calls++ })
	d.Trigger()
	d.Trigger()
	assert.Equal(t, 2, calls)
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	c := NewFakeClock()
	var calledAt []int64
	d := NewDebouncer("test", c, 500*time.Millisecond, func() { calledAt = append(calledAt, c.Msec()) })

	d.Trigger()
	c.Advance(100 * time.Millisecond)
	d.Trigger()
	d.Trigger()
	c.Advance(time.Second)
	d.Trigger()
	c.Advance(time.Second)

	assert.Equal(t, []int64{DefaultFakeStart + 500, DefaultFakeStart + 1600}, calledAt)
}

func TestRealClock_AfterFunc(t *testing.T) {
	c := NewRealClock()
	assert.InDelta(t, time.Now().UnixMilli(), c.Msec(), 1000)

	wg := sync.WaitGroup{}
	wg.Add(1)
	c.AfterFunc("done", 10*time.Millisecond, wg.Done)
	wg.Wait()
}
