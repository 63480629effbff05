// Package listener receives task status messages from the event bus, decodes them and
// hands them to the registered handlers.
package listener

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
)

// Action is the task state transition a message reports.
type Action int

const (
	ActionPending Action = iota
	ActionRunning
	ActionCompleted
	ActionFailed
	ActionException
)

var actionNames = map[Action]string{
	ActionPending:   "task-pending",
	ActionRunning:   "task-running",
	ActionCompleted: "task-completed",
	ActionFailed:    "task-failed",
	ActionException: "task-exception",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps an exchange name, e.g. "exchange/taskcluster-queue/v1/task-running",
// to the action named by its last path segment.
func ParseAction(exchange string) (Action, error) {
	suffix := exchange[strings.LastIndex(exchange, "/")+1:]
	for action, name := range actionNames {
		if name == suffix {
			return action, nil
		}
	}
	return 0, errors.WithStack(&apierrors.ErrInvalidArgument{
		Name:    "exchange",
		Value:   exchange,
		Message: "not a task status exchange",
	})
}

// Envelope is the wire format of a message on the bus.
type Envelope struct {
	Exchange   string  `json:"exchange"`
	RoutingKey string  `json:"routingKey"`
	Payload    Payload `json:"payload"`
}

type Payload struct {
	Status queue.TaskStatus `json:"status"`
	RunId  *int             `json:"runId,omitempty"`
}

// TaskMessage is a decoded status change of a single task.
type TaskMessage struct {
	Action Action
	TaskId string
	// Absent for some exception messages, where the task never got a run.
	RunId  *int
	Status queue.TaskStatus
}

func (m *TaskMessage) key() string {
	runId := "-"
	if m.RunId != nil {
		runId = fmt.Sprint(*m.RunId)
	}
	return m.TaskId + "/" + runId + "/" + m.Action.String()
}

// Decode parses a bus message.
func Decode(data []byte) (*TaskMessage, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "message",
			Value:   string(data),
			Message: err.Error(),
		})
	}
	action, err := ParseAction(envelope.Exchange)
	if err != nil {
		return nil, err
	}
	if envelope.Payload.Status.TaskId == "" {
		return nil, errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "payload.status.taskId",
			Value:   "",
			Message: "message has no task id",
		})
	}
	return &TaskMessage{
		Action: action,
		TaskId: envelope.Payload.Status.TaskId,
		RunId:  envelope.Payload.RunId,
		Status: envelope.Payload.Status,
	}, nil
}

// Encode is the inverse of Decode; used by the watch command and tests.
func Encode(exchange string, status queue.TaskStatus, runId *int) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		Exchange:   exchange,
		RoutingKey: "primary." + status.TaskId,
		Payload:    Payload{Status: status, RunId: runId},
	})
	return data, errors.WithStack(err)
}
