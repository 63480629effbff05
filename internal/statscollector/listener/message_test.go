package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/pointer"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
)

func TestParseAction(t *testing.T) {
	tests := map[string]struct {
		exchange string
		expected Action
	}{
		"pending":   {"exchange/taskcluster-queue/v1/task-pending", ActionPending},
		"running":   {"exchange/taskcluster-queue/v1/task-running", ActionRunning},
		"completed": {"exchange/taskcluster-queue/v1/task-completed", ActionCompleted},
		"failed":    {"exchange/taskcluster-queue/v1/task-failed", ActionFailed},
		"exception": {"exchange/taskcluster-queue/v1/task-exception", ActionException},
		"bare name": {"task-running", ActionRunning},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			action, err := ParseAction(tc.exchange)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, action)
		})
	}
}

func TestParseAction_Unknown(t *testing.T) {
	for _, exchange := range []string{"", "exchange/taskcluster-queue/v1/task-defined", "exchange/taskcluster-queue/v1/"} {
		_, err := ParseAction(exchange)
		assert.True(t, apierrors.IsInvalidArgument(err), exchange)
	}
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{
		"exchange": "exchange/taskcluster-queue/v1/task-pending",
		"routingKey": "primary.abc",
		"payload": {
			"status": {"taskId": "abc", "provisionerId": "aws-provisioner-v1", "workerType": "gecko-t-linux",
			           "runs": [{"runId": 0, "state": "pending", "reasonCreated": "scheduled",
			                     "scheduled": "2018-01-01T00:00:00.000Z"}]},
			"runId": 0
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, ActionPending, msg.Action)
	assert.Equal(t, "abc", msg.TaskId)
	require.NotNil(t, msg.RunId)
	assert.Equal(t, 0, *msg.RunId)
	assert.Equal(t, "gecko-t-linux", msg.Status.WorkerType)
	assert.Equal(t, queue.StatePending, msg.Status.Runs[0].State)
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":        `{`,
		"unknown action":  `{"exchange": "exchange/taskcluster-queue/v1/task-defined", "payload": {"status": {"taskId": "abc"}}}`,
		"missing task id": `{"exchange": "exchange/taskcluster-queue/v1/task-running", "payload": {"status": {}}}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(data))
			assert.True(t, apierrors.IsInvalidArgument(err))
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode("exchange/taskcluster-queue/v1/task-failed", queue.TaskStatus{TaskId: "abc"}, pointer.Int(2))
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ActionFailed, msg.Action)
	assert.Equal(t, 2, *msg.RunId)
}
