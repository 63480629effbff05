// Package fake provides an in-memory queue.Client for tests.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
)

type Queue struct {
	mu           sync.Mutex
	statuses     map[string]queue.TaskStatus
	workerTypes  map[string][]string
	statusCalls  []string
	statusErrors map[string]error
}

func NewQueue() *Queue {
	return &Queue{
		statuses:     map[string]queue.TaskStatus{},
		workerTypes:  map[string][]string{},
		statusErrors: map[string]error{},
	}
}

// SetStatus makes Status return status for its task.
func (q *Queue) SetStatus(status queue.TaskStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[status.TaskId] = status
}

// SetRunState sets the state of a single run, creating the task and run as needed.
func (q *Queue) SetRunState(taskId string, runId int, state string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status := q.statuses[taskId]
	status.TaskId = taskId
	for len(status.Runs) <= runId {
		status.Runs = append(status.Runs, queue.Run{RunId: len(status.Runs)})
	}
	status.Runs[runId].State = state
	status.State = state
	q.statuses[taskId] = status
}

// FailStatus makes Status calls for taskId fail with err until cleared with a nil err.
func (q *Queue) FailStatus(taskId string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err == nil {
		delete(q.statusErrors, taskId)
		return
	}
	q.statusErrors[taskId] = err
}

func (q *Queue) SetWorkerTypes(provisionerId string, workerTypes ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.workerTypes[provisionerId] = workerTypes
}

// StatusCalls returns the task ids passed to Status, in call order.
func (q *Queue) StatusCalls() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.statusCalls...)
}

func (q *Queue) Status(_ context.Context, taskId string) (*queue.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statusCalls = append(q.statusCalls, taskId)
	if err, ok := q.statusErrors[taskId]; ok {
		return nil, err
	}
	status, ok := q.statuses[taskId]
	if !ok {
		return nil, errors.WithStack(&apierrors.ErrNotFound{Type: "task", Value: taskId})
	}
	status.Runs = append([]queue.Run{}, status.Runs...)
	return &status, nil
}

func (q *Queue) WorkerTypes(_ context.Context, provisionerId string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	workerTypes, ok := q.workerTypes[provisionerId]
	if !ok {
		return nil, errors.WithStack(&apierrors.ErrNotFound{Type: "provisioner", Value: provisionerId})
	}
	return append([]string{}, workerTypes...), nil
}
