package clock

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into a single trailing call of fn, made
// window after the first Trigger of the burst. A zero window calls fn synchronously.
type Debouncer struct {
	name   string
	clock  Clock
	window time.Duration
	fn     func()

	mu        sync.Mutex
	scheduled bool
}

func NewDebouncer(name string, c Clock, window time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		name:   name,
		clock:  c,
		window: window,
		fn:     fn,
	}
}

func (d *Debouncer) Trigger() {
	if d.window <= 0 {
		d.fn()
		return
	}
	d.mu.Lock()
	if d.scheduled {
		d.mu.Unlock()
		return
	}
	d.scheduled = true
	d.mu.Unlock()

	d.clock.AfterFunc(d.name, d.window, func() {
		d.mu.Lock()
		d.scheduled = false
		d.mu.Unlock()
		d.fn()
	})
}
