package ingest

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// Batcher groups the items read from a channel. A batch is handed to the callback once it
// holds maxItems items or maxTimeout after it was started, whichever comes first; empty
// batches are never emitted. Whatever is buffered when the context is done or the input
// is closed is emitted as a final batch.
type Batcher[T any] struct {
	input      chan T
	maxItems   int
	maxTimeout time.Duration
	clock      clock.Clock
	callback   func([]T)
	buffer     []T
}

func NewBatcher[T any](input chan T, maxItems int, maxTimeout time.Duration, callback func([]T)) *Batcher[T] {
	return &Batcher[T]{
		input:      input,
		maxItems:   maxItems,
		maxTimeout: maxTimeout,
		callback:   callback,
		clock:      clock.RealClock{},
	}
}

func (b *Batcher[T]) Run(ctx context.Context) {
	for b.fill(ctx) {
		b.emit()
	}
	b.emit()
}

// fill buffers items until the current batch is complete. It returns false once no
// further items will be read.
func (b *Batcher[T]) fill(ctx context.Context) bool {
	b.buffer = make([]T, 0, b.maxItems)
	expire := b.clock.After(b.maxTimeout)
	for {
		select {
		case <-ctx.Done():
			log.Debug("batcher stopping: context is done")
			return false
		case item, ok := <-b.input:
			if !ok {
				return false
			}
			b.buffer = append(b.buffer, item)
			if len(b.buffer) >= b.maxItems {
				return true
			}
		case <-expire:
			if len(b.buffer) > 0 {
				return true
			}
			expire = b.clock.After(b.maxTimeout)
		}
	}
}

func (b *Batcher[T]) emit() {
	if len(b.buffer) == 0 {
		return
	}
	batch := b.buffer
	b.buffer = nil
	b.callback(batch)
}
