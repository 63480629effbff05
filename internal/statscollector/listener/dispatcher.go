package listener

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/logging"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
)

// Handler consumes task messages. Errors are logged and counted; they never stop the listener.
type Handler interface {
	HandleMessage(ctx context.Context, msg *TaskMessage) error
}

type HandlerFunc func(ctx context.Context, msg *TaskMessage) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg *TaskMessage) error {
	return f(ctx, msg)
}

type namedHandler struct {
	name    string
	handler Handler
}

// Dispatcher decodes raw messages, drops redeliveries and fans messages out to handlers
// in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []namedHandler
	// Keys of recently dispatched messages
	seen    *lru.Cache
	metrics *metrics.Metrics
}

func NewDispatcher(dedupCacheSize int, m *metrics.Metrics) (*Dispatcher, error) {
	seen, err := lru.New(dedupCacheSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Dispatcher{seen: seen, metrics: m}, nil
}

func (d *Dispatcher) Register(name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, namedHandler{name: name, handler: handler})
}

// Dispatch processes one raw message. It returns false only if the message could not be
// decoded; handler failures are not reported to the transport, since redelivering a
// message would not help.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) bool {
	msg, err := Decode(data)
	if err != nil {
		d.metrics.RecordMessageError(metrics.MessageErrorDecode)
		logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Warn("dropping undecodable message")
		return false
	}
	d.DispatchMessage(ctx, msg)
	return true
}

func (d *Dispatcher) DispatchMessage(ctx context.Context, msg *TaskMessage) {
	if contains, _ := d.seen.ContainsOrAdd(msg.key(), struct{}{}); contains {
		d.metrics.RecordDuplicateMessage()
		log.Debugf("dropping duplicate message %s", msg.key())
		return
	}
	d.metrics.RecordMessage(msg.Action.String())

	d.mu.RLock()
	handlers := d.handlers
	d.mu.RUnlock()
	for _, h := range handlers {
		if err := d.invoke(ctx, h, msg); err != nil {
			d.metrics.RecordMessageError(metrics.MessageErrorProcessing)
			logging.WithStacktrace(log.WithFields(log.Fields{
				"handler": h.name,
				"taskId":  msg.TaskId,
				"action":  msg.Action.String(),
			}), err).Error("error handling task message")
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h namedHandler, msg *TaskMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithStack(fmt.Errorf("handler panicked: %v", r))
		}
	}()
	return h.handler.HandleMessage(ctx, msg)
}
