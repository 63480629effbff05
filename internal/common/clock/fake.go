package clock

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultFakeStart is the epoch-millisecond time at which NewFakeClock starts.
const DefaultFakeStart int64 = 1000000000

// FakeClock is a manually advanced Clock. Timers fire synchronously from Advance, in
// timestamp order and FIFO for identical timestamps. Timers scheduled by a callback
// fire within the same Advance if they become due before it ends.
type FakeClock struct {
	mu     sync.Mutex
	now    int64
	seq    int64
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	name    string
	at      int64
	seq     int64
	fn      func()
	stopped bool
}

func NewFakeClock() *FakeClock {
	return NewFakeClockAt(DefaultFakeStart)
}

func NewFakeClockAt(msec int64) *FakeClock {
	return &FakeClock{now: msec}
}

func (c *FakeClock) Now() time.Time {
	return time.UnixMilli(c.Msec())
}

func (c *FakeClock) Msec() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(name string, d time.Duration, f func()) Timer {
	if d < 0 {
		panic("AfterFunc called with a negative delay")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{
		clock: c,
		name:  name,
		at:    c.now + d.Milliseconds(),
		seq:   c.seq,
		fn:    f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that becomes due on the way.
// The clock reads the timer's due time while its callback runs.
func (c *FakeClock) Advance(d time.Duration) {
	c.AdvanceTo(c.Msec() + d.Milliseconds())
}

// AdvanceTo moves the clock to the given epoch-millisecond time.
func (c *FakeClock) AdvanceTo(until int64) {
	for {
		c.mu.Lock()
		next := c.popDueLocked(until)
		if next == nil {
			if until > c.now {
				c.now = until
			}
			c.mu.Unlock()
			return
		}
		if next.at > c.now {
			c.now = next.at
		}
		c.mu.Unlock()

		log.Debugf("%d: calling function %s", next.at, next.name)
		next.fn()
	}
}

// Pending returns the number of timers that have not yet fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *FakeClock) popDueLocked(until int64) *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at == c.timers[j].at {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at < c.timers[j].at
	})
	first := c.timers[0]
	if first.at > until {
		return nil
	}
	c.timers = c.timers[1:]
	return first
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.stopped {
		return false
	}
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			t.stopped = true
			return true
		}
	}
	return false
}
