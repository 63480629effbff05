package listener

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/statscollector/internal/statscollector/metrics"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
)

func message(t *testing.T, action string, taskId string, runId int) []byte {
	data, err := Encode("exchange/taskcluster-queue/v1/"+action, queue.TaskStatus{TaskId: taskId}, &runId)
	require.NoError(t, err)
	return data
}

type recordingHandler struct {
	received []string
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg *TaskMessage) error {
	h.received = append(h.received, msg.key())
	return nil
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	d, err := NewDispatcher(10, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	return d
}

func TestDispatcher_FansOutInOrder(t *testing.T) {
	d := newTestDispatcher(t)
	var calls []string
	d.Register("first", HandlerFunc(func(_ context.Context, msg *TaskMessage) error {
		calls = append(calls, "first:"+msg.Action.String())
		return nil
	}))
	d.Register("second", HandlerFunc(func(_ context.Context, msg *TaskMessage) error {
		calls = append(calls, "second:"+msg.Action.String())
		return nil
	}))

	assert.True(t, d.Dispatch(context.Background(), message(t, "task-pending", "abc", 0)))
	assert.True(t, d.Dispatch(context.Background(), message(t, "task-running", "abc", 0)))

	assert.Equal(t, []string{
		"first:task-pending", "second:task-pending",
		"first:task-running", "second:task-running",
	}, calls)
}

func TestDispatcher_DropsDuplicates(t *testing.T) {
	d := newTestDispatcher(t)
	h := &recordingHandler{}
	d.Register("recorder", h)

	ctx := context.Background()
	d.Dispatch(ctx, message(t, "task-pending", "abc", 0))
	d.Dispatch(ctx, message(t, "task-pending", "abc", 0))
	d.Dispatch(ctx, message(t, "task-running", "abc", 0))
	d.Dispatch(ctx, message(t, "task-pending", "abc", 1))

	assert.Equal(t, []string{"abc/0/task-pending", "abc/0/task-running", "abc/1/task-pending"}, h.received)
}

func TestDispatcher_HandlerFailuresAreIsolated(t *testing.T) {
	d := newTestDispatcher(t)
	d.Register("panics", HandlerFunc(func(context.Context, *TaskMessage) error {
		panic("boom")
	}))
	d.Register("fails", HandlerFunc(func(context.Context, *TaskMessage) error {
		return errors.New("failed")
	}))
	h := &recordingHandler{}
	d.Register("recorder", h)

	assert.True(t, d.Dispatch(context.Background(), message(t, "task-completed", "abc", 0)))
	assert.Equal(t, []string{"abc/0/task-completed"}, h.received)
}

func TestDispatcher_Undecodable(t *testing.T) {
	d := newTestDispatcher(t)
	h := &recordingHandler{}
	d.Register("recorder", h)

	assert.False(t, d.Dispatch(context.Background(), []byte(`{"exchange": "nope"}`)))
	assert.Empty(t, h.received)
}
