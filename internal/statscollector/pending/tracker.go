// Package pending tracks the tasks currently waiting in the queue of each worker pool and
// reports the longest wait of every pool.
package pending

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/common/task"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
	"github.com/G-Research/statscollector/internal/statscollector/listener"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
	"github.com/G-Research/statscollector/internal/statscollector/monitor"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
)

// Tracker is fed task messages and keeps, per worker pool, the scheduled time of every
// task run it believes is pending.
//
// A pool only reports its longest wait once it is ready, i.e. once a run was seen both
// entering and leaving the pending state. Before that the tracker cannot know about
// runs that became pending before it started.
type Tracker struct {
	config  configuration.PendingConfig
	clock   clock.Clock
	monitor monitor.Monitor
	queue   queue.Client
	metrics *metrics.Metrics
	ignore  map[string]bool

	mu sync.Mutex
	// pool -> "taskId/runId" -> scheduled ms. An empty map means nothing is pending.
	pools map[string]map[string]int64
	ready map[string]bool
}

func NewTracker(
	config configuration.PendingConfig,
	c clock.Clock,
	m monitor.Monitor,
	q queue.Client,
	metrics *metrics.Metrics,
) *Tracker {
	ignore := make(map[string]bool, len(config.IgnoreProvisioners))
	for _, p := range config.IgnoreProvisioners {
		ignore[p] = true
	}
	return &Tracker{
		config:  config,
		clock:   c,
		monitor: m,
		queue:   q,
		metrics: metrics,
		ignore:  ignore,
		pools:   map[string]map[string]int64{},
		ready:   map[string]bool{},
	}
}

// Start registers the periodic flush and check with tasks.
func (t *Tracker) Start(ctx context.Context, tasks *task.BackgroundTaskManager) {
	tasks.Register(ctx, "pending-flush", t.config.FlushInterval, t.Flush)
	tasks.Register(ctx, "pending-check", t.config.CheckInterval, t.Check)
}

func PoolName(provisionerId, workerType string) string {
	return provisionerId + "." + workerType
}

func taskKey(taskId string, runId int) string {
	return taskId + "/" + strconv.Itoa(runId)
}

func splitKey(key string) (string, int, error) {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return "", 0, errors.Errorf("invalid task key %q", key)
	}
	runId, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, errors.Wrapf(err, "invalid task key %q", key)
	}
	return key[:i], runId, nil
}

func (t *Tracker) HandleMessage(_ context.Context, msg *listener.TaskMessage) error {
	if t.ignore[msg.Status.ProvisionerId] {
		return nil
	}
	if msg.RunId == nil {
		return errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "runId",
			Value:   msg.TaskId,
			Message: "message has no run id",
		})
	}
	runId := *msg.RunId
	if runId < 0 || runId >= len(msg.Status.Runs) {
		return errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "runId",
			Value:   runId,
			Message: fmt.Sprintf("task %s has %d runs", msg.TaskId, len(msg.Status.Runs)),
		})
	}
	run := msg.Status.Runs[runId]
	var started int64
	if !run.Started.IsZero() {
		started = run.Started.UnixMilli()
	}
	t.Update(
		PoolName(msg.Status.ProvisionerId, msg.Status.WorkerType),
		taskKey(msg.TaskId, runId),
		msg.Action == listener.ActionPending,
		run.Scheduled.UnixMilli(),
		started)
	return nil
}

// Update applies a single state change of a task run. started is 0 if the run never started.
func (t *Tracker) Update(pool, key string, isPending bool, scheduled, started int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks, ok := t.pools[pool]
	if !ok {
		tasks = map[string]int64{}
		t.pools[pool] = tasks
	}

	if isPending {
		if _, tracked := tasks[key]; !tracked {
			log.Debugf("task pending: %s at %d (%s)", key, scheduled, pool)
			tasks[key] = scheduled
		}
	} else if _, tracked := tasks[key]; tracked {
		log.Debugf("task no longer pending: %s (%s)", key, pool)
		t.ready[pool] = true
		delete(tasks, key)
	} else if !t.ready[pool] && started != 0 {
		// Not enough history yet; report the total wait of this run so that the pool
		// is not blank until it becomes ready.
		t.monitor.Measure(fmt.Sprintf("tasks.%s.pending", pool), float64(started-scheduled))
	}
	t.metrics.SetTrackedPendingTasks(pool, len(tasks))
}

// earliest returns the tracked task of pool with the earliest scheduled time that is
// before now.
func (t *Tracker) earliest(pool string, now int64) (string, int64, bool) {
	key, scheduled, found := "", now, false
	for k, s := range t.pools[pool] {
		// Ties are broken by key so that checks are deterministic.
		if s < scheduled || (found && s == scheduled && k < key) {
			key, scheduled, found = k, s, true
		}
	}
	return key, scheduled, found
}

// Flush measures the longest current wait of every ready pool, or 0 if nothing is pending.
func (t *Tracker) Flush(_ context.Context) error {
	now := t.clock.Msec()
	t.mu.Lock()
	defer t.mu.Unlock()
	pools := maps.Keys(t.ready)
	slices.Sort(pools)
	for _, pool := range pools {
		var waiting int64
		if _, scheduled, found := t.earliest(pool, now); found {
			waiting = now - scheduled
		}
		t.monitor.Measure(fmt.Sprintf("tasks.%s.pending", pool), float64(waiting))
	}
	return nil
}

// Check verifies the longest-pending task of every pool against the queue, as long as it
// has been pending for longer than MinCheckAge, dropping those that are not actually
// pending. This repairs the state after missed or reordered messages.
func (t *Tracker) Check(ctx context.Context) error {
	now := t.clock.Msec()
	t.mu.Lock()
	pools := maps.Keys(t.pools)
	t.mu.Unlock()
	slices.Sort(pools)

	var result *multierror.Error
	for _, pool := range pools {
		if err := t.checkPool(ctx, pool, now); err != nil {
			result = multierror.Append(result, err)
			log.WithError(err).Warnf("checking pending tasks of %s failed", pool)
		}
	}
	return result.ErrorOrNil()
}

func (t *Tracker) checkPool(ctx context.Context, pool string, now int64) error {
	minAge := t.config.MinCheckAge.Milliseconds()
	for {
		t.mu.Lock()
		key, scheduled, found := t.earliest(pool, now)
		t.mu.Unlock()
		if !found || now-scheduled <= minAge {
			return nil
		}

		taskId, runId, err := splitKey(key)
		if err != nil {
			return err
		}
		status, err := t.queue.Status(ctx, taskId)
		if err != nil && !apierrors.IsNotFound(err) {
			return err
		}
		if err == nil && runId < len(status.Runs) && status.Runs[runId].State == queue.StatePending {
			return nil
		}

		log.Debugf("task not actually pending: %s (%s)", key, pool)
		t.mu.Lock()
		if s, ok := t.pools[pool][key]; ok && s == scheduled {
			delete(t.pools[pool], key)
		}
		t.metrics.SetTrackedPendingTasks(pool, len(t.pools[pool]))
		t.mu.Unlock()
	}
}
