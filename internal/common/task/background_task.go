package task

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/common/logging"
)

type task struct {
	function func(ctx context.Context) error
	interval time.Duration
	name     string
	timer    clock.Timer
	stopped  bool
	latency  prometheus.Observer
}

// BackgroundTaskManager runs functions periodically on a clock. A task runs first one
// interval after registration, and keeps running after failures; errors are passed to
// the manager's error handler.
type BackgroundTaskManager struct {
	clock         clock.Clock
	metricsPrefix string
	onError       func(name string, err error)
	histogram     *prometheus.HistogramVec

	mu    sync.Mutex
	tasks []*task
	wg    sync.WaitGroup
}

func NewBackgroundTaskManager(c clock.Clock, metricsPrefix string, registerer prometheus.Registerer) *BackgroundTaskManager {
	return &BackgroundTaskManager{
		clock:         c,
		metricsPrefix: metricsPrefix,
		onError: func(name string, err error) {
			logging.WithStacktrace(log.WithField("task", name), err).Warn("background task failed")
		},
		histogram: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "background_task_latency_seconds",
				Help:    "Background task latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
			},
			[]string{"task"},
		),
	}
}

// OnError replaces the handler called with the error of a failed run.
func (m *BackgroundTaskManager) OnError(handler func(name string, err error)) {
	m.onError = handler
}

// Register starts running fn every interval until ctx is done or StopAll is called.
func (m *BackgroundTaskManager) Register(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) {
	t := &task{
		function: fn,
		interval: interval,
		name:     name,
		latency:  m.histogram.WithLabelValues(name),
	}
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	m.schedule(ctx, t)
}

func (m *BackgroundTaskManager) schedule(ctx context.Context, t *task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.stopped || ctx.Err() != nil {
		return
	}
	t.timer = m.clock.AfterFunc(t.name, t.interval, func() {
		m.run(ctx, t)
	})
}

func (m *BackgroundTaskManager) run(ctx context.Context, t *task) {
	// no run may start once StopAll has marked the task stopped
	m.mu.Lock()
	if t.stopped || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	start := time.Now()
	log.Debugf("Running %s", t.name)
	if err := t.function(ctx); err != nil {
		m.onError(t.name, err)
	}
	t.latency.Observe(time.Since(start).Seconds())
	m.wg.Done()
	m.schedule(ctx, t)
}

// StopAll cancels all pending runs and waits up to timeout for in-flight runs.
// It returns true if the wait timed out.
func (m *BackgroundTaskManager) StopAll(timeout time.Duration) bool {
	m.mu.Lock()
	for _, t := range m.tasks {
		t.stopped = true
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	m.mu.Unlock()
	return m.waitForShutdownCompletion(timeout)
}

func (m *BackgroundTaskManager) waitForShutdownCompletion(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		m.wg.Wait()
	}()
	select {
	case <-c:
		return false
	case <-time.After(timeout):
		return true
	}
}
