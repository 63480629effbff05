package clock

import (
	"time"

	"k8s.io/utils/clock"
)

// Clock is the single source of "now" for a pipeline, together with delayed execution.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Msec returns the current time in milliseconds since the epoch.
	Msec() int64
	// AfterFunc calls f in its own goroutine (or, for fake clocks, synchronously while the
	// clock is advanced) once d has elapsed. The name is used for debugging only.
	AfterFunc(name string, d time.Duration, f func()) Timer
}

// Timer is a pending call scheduled with AfterFunc.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// RealClock is a Clock backed by wall-clock time.
type RealClock struct {
	delegate clock.WithDelayedExecution
}

func NewRealClock() *RealClock {
	return &RealClock{delegate: clock.RealClock{}}
}

func (c *RealClock) Now() time.Time {
	return c.delegate.Now()
}

func (c *RealClock) Msec() int64 {
	return c.delegate.Now().UnixMilli()
}

func (c *RealClock) AfterFunc(_ string, d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	return c.delegate.AfterFunc(d, f)
}

// Millis converts a millisecond count into a time.Duration.
func Millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
