// Package running measures how long task runs took and how they were resolved.
package running

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/statscollector/listener"
	"github.com/G-Research/statscollector/internal/statscollector/monitor"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
)

// Consumer handles resolution messages. For every run since the last one that was not
// an automatic retry it measures tasks.<workerType>.running and counts
// tasks.<workerType>.resolved.<reason>.
type Consumer struct {
	monitor monitor.Monitor
}

func NewConsumer(m monitor.Monitor) *Consumer {
	return &Consumer{monitor: m}
}

func (c *Consumer) HandleMessage(_ context.Context, msg *listener.TaskMessage) error {
	if msg.Action == listener.ActionPending || msg.Action == listener.ActionRunning {
		return nil
	}

	runs := msg.Status.Runs
	workerType := msg.Status.WorkerType
	for _, run := range runs[lastNonRetry(runs):] {
		if run.ReasonResolved == "" {
			log.Debugf("run %d of %s is not resolved", run.RunId, msg.TaskId)
			continue
		}
		if run.ReasonResolved != queue.ReasonDeadlineExceeded && !run.Started.IsZero() && !run.Resolved.IsZero() {
			c.monitor.Measure(
				fmt.Sprintf("tasks.%s.running", workerType),
				float64(run.Resolved.Sub(run.Started).Milliseconds()))
		}
		c.monitor.Count(fmt.Sprintf("tasks.%s.resolved.%s", workerType, run.ReasonResolved))
	}
	return nil
}

// lastNonRetry is the index of the last run not created by a retry, or 0 if there is none.
func lastNonRetry(runs []queue.Run) int {
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].ReasonCreated != queue.ReasonCreatedRetry {
			return i
		}
	}
	return 0
}
