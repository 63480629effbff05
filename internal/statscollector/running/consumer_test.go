package running

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/pointer"

	"github.com/G-Research/statscollector/internal/statscollector/listener"
	monitorfake "github.com/G-Research/statscollector/internal/statscollector/monitor/fake"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
)

func run(reasonCreated, reasonResolved string, started, resolved int64) queue.Run {
	return queue.Run{
		ReasonCreated:  reasonCreated,
		ReasonResolved: reasonResolved,
		Started:        time.UnixMilli(started),
		Resolved:       time.UnixMilli(resolved),
	}
}

func send(t *testing.T, c *Consumer, action listener.Action, runs ...queue.Run) {
	for i := range runs {
		runs[i].RunId = i
	}
	err := c.HandleMessage(context.Background(), &listener.TaskMessage{
		Action: action,
		TaskId: "taskid",
		RunId:  pointer.Int(len(runs) - 1),
		Status: queue.TaskStatus{TaskId: "taskid", WorkerType: "wt", Runs: runs},
	})
	require.NoError(t, err)
}

func TestNothingHappensForPendingOrRunningTasks(t *testing.T) {
	m := monitorfake.NewMonitor()
	c := NewConsumer(m)
	send(t, c, listener.ActionPending)
	send(t, c, listener.ActionRunning)
	assert.Empty(t, m.TakeMeasures())
	assert.Empty(t, m.TakeCounts())
}

func TestResolvedRunIsAnalysed(t *testing.T) {
	m := monitorfake.NewMonitor()
	c := NewConsumer(m)
	send(t, c, listener.ActionCompleted, run("scheduled", "completed", 10000, 20000))
	assert.Equal(t, map[string][]float64{"tasks.wt.running": {10000}}, m.TakeMeasures())
	assert.Equal(t, map[string]int{"tasks.wt.resolved.completed": 1}, m.TakeCounts())
}

func TestDeadlineExceededIsCountedButNotTimed(t *testing.T) {
	m := monitorfake.NewMonitor()
	c := NewConsumer(m)
	send(t, c, listener.ActionException, run("scheduled", "deadline-exceeded", 10000, 20000))
	assert.Empty(t, m.TakeMeasures())
	assert.Equal(t, map[string]int{"tasks.wt.resolved.deadline-exceeded": 1}, m.TakeCounts())
}

func TestRunsBeforeTheLastNonRetryRunAreIgnored(t *testing.T) {
	m := monitorfake.NewMonitor()
	c := NewConsumer(m)
	send(t, c, listener.ActionCompleted,
		run("scheduled", "retry", 10000, 50000),
		run("retry", "failed", 50000, 80000),
		run("rerun", "completed", 80000, 90000))
	assert.Equal(t, map[string][]float64{"tasks.wt.running": {10000}}, m.TakeMeasures())
	assert.Equal(t, map[string]int{"tasks.wt.resolved.completed": 1}, m.TakeCounts())
}

func TestRetriesAfterTheLastNonRetryRunAreAnalysed(t *testing.T) {
	m := monitorfake.NewMonitor()
	c := NewConsumer(m)
	send(t, c, listener.ActionFailed,
		run("scheduled", "retry", 10000, 50000),
		run("retry", "retry", 50000, 80000),
		run("retry", "failed", 80000, 90000))
	assert.Equal(t, map[string][]float64{"tasks.wt.running": {40000, 30000, 10000}}, m.TakeMeasures())
	assert.Equal(t, map[string]int{"tasks.wt.resolved.retry": 2, "tasks.wt.resolved.failed": 1}, m.TakeCounts())
}

func TestAllRetryRunsStartFromTheFirst(t *testing.T) {
	m := monitorfake.NewMonitor()
	c := NewConsumer(m)
	send(t, c, listener.ActionFailed,
		run("retry", "retry", 10000, 20000),
		run("retry", "failed", 20000, 25000))
	assert.Equal(t, map[string][]float64{"tasks.wt.running": {10000, 5000}}, m.TakeMeasures())
}

func TestExceptionBeforeStartIsCountedButNotTimed(t *testing.T) {
	m := monitorfake.NewMonitor()
	c := NewConsumer(m)
	send(t, c, listener.ActionException, queue.Run{ReasonCreated: "scheduled", ReasonResolved: "canceled", Resolved: time.UnixMilli(5000)})
	assert.Empty(t, m.TakeMeasures())
	assert.Equal(t, map[string]int{"tasks.wt.resolved.canceled": 1}, m.TakeCounts())
}
