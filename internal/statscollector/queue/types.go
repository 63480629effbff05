// Package queue is a client of the Taskcluster queue service, the authority on the state
// of tasks.
package queue

import (
	"context"
	"time"
)

// Run states
const (
	StateUnscheduled = "unscheduled"
	StatePending     = "pending"
	StateRunning     = "running"
	StateCompleted   = "completed"
	StateFailed      = "failed"
	StateException   = "exception"
)

// Reasons a run was created or resolved that collectors treat specially.
const (
	ReasonCreatedRetry     = "retry"
	ReasonDeadlineExceeded = "deadline-exceeded"
)

type Run struct {
	RunId          int       `json:"runId"`
	State          string    `json:"state"`
	ReasonCreated  string    `json:"reasonCreated"`
	ReasonResolved string    `json:"reasonResolved,omitempty"`
	Scheduled      time.Time `json:"scheduled"`
	Started        time.Time `json:"started"`
	Resolved       time.Time `json:"resolved"`
}

type TaskStatus struct {
	TaskId        string `json:"taskId"`
	ProvisionerId string `json:"provisionerId"`
	WorkerType    string `json:"workerType"`
	State         string `json:"state"`
	Runs          []Run  `json:"runs"`
}

// Client is the part of the queue API used by collectors.
type Client interface {
	// Status returns the current status of a task; an unknown task is an apierrors.ErrNotFound.
	Status(ctx context.Context, taskId string) (*TaskStatus, error)
	// WorkerTypes lists the worker types of a provisioner.
	WorkerTypes(ctx context.Context, provisionerId string) ([]string, error)
}
