// Package apierrors contains the generic errors returned by the clients of external
// services. Callers use errors.As (or the Is* helpers, which look through the whole
// chain of wrapped errors) to tell missing data apart from genuine failures.
package apierrors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrNotFound is returned whenever some resource, e.g. a time series, does not exist.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "timeseries" or "task"
	Value   string // Resource name, e.g., "sf_metric:foo"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ErrInvalidArgument is returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the argument referred to, e.g., "resolution"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrTransient marks a failure of an upstream service that is worth retrying.
type ErrTransient struct {
	Service    string // e.g., "signalfx"
	StatusCode int    // HTTP status code, if any
	Message    string
}

func (err *ErrTransient) Error() string {
	if err.StatusCode != 0 {
		return fmt.Sprintf("transient error from %s: HTTP %d: %s", err.Service, err.StatusCode, err.Message)
	}
	return fmt.Sprintf("transient error from %s: %s", err.Service, err.Message)
}

type Code int

const (
	CodeUnknown Code = iota
	CodeNotFound
	CodeInvalidArgument
	CodeTransient
)

// CodeFromError maps error types to codes, looking through the chain of errors
// as opposed to just considering the topmost error in the chain.
func CodeFromError(err error) Code {
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return CodeNotFound
		}
	}
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return CodeInvalidArgument
		}
	}
	{
		var e *ErrTransient
		if errors.As(err, &e) {
			return CodeTransient
		}
	}
	return CodeUnknown
}

func IsNotFound(err error) bool {
	return CodeFromError(err) == CodeNotFound
}

func IsInvalidArgument(err error) bool {
	return CodeFromError(err) == CodeInvalidArgument
}

func IsTransient(err error) bool {
	return CodeFromError(err) == CodeTransient
}

// FromHttpStatus converts a non-2xx response of service into an error of the matching type.
// resourceType and value describe what was requested.
func FromHttpStatus(service string, statusCode int, resourceType, value, body string) error {
	switch {
	case statusCode == http.StatusNotFound:
		return errors.WithStack(&ErrNotFound{Type: resourceType, Value: value, Message: body})
	case statusCode == http.StatusBadRequest:
		return errors.WithStack(&ErrInvalidArgument{Name: resourceType, Value: value, Message: body})
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return errors.WithStack(&ErrTransient{Service: service, StatusCode: statusCode, Message: body})
	default:
		return errors.Errorf("error from %s: HTTP %d, %s", service, statusCode, body)
	}
}
