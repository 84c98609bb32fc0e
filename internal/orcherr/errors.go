// Package orcherr defines the typed error taxonomy shared by every
// orchestrator component, modeled on the distributed-error pattern used
// throughout the wider codebase.
package orcherr

import (
	"fmt"
	"time"
)

// Code identifies the behavioral class of an Error.
type Code string

const (
	InvalidInput      Code = "INVALID_INPUT"
	UnknownEntity     Code = "UNKNOWN_ENTITY"
	Conflict          Code = "CONFLICT"
	TransientDispatch Code = "TRANSIENT_DISPATCH"
	PermanentDispatch Code = "PERMANENT_DISPATCH"
	NodeFailure       Code = "NODE_FAILURE"
	Timeout           Code = "TIMEOUT"
	QueueFull         Code = "QUEUE_FULL"
	Internal          Code = "INTERNAL"
)

// Error is the single error type returned by every public operation in the
// orchestrator core. It never panics its way out of a component boundary.
type Error struct {
	Code      Code
	Message   string
	NodeID    string
	TaskID    string
	Timestamp time.Time
	Cause     error
}

func (e *Error) Error() string {
	switch {
	case e.NodeID != "" && e.TaskID != "":
		return fmt.Sprintf("[%s] %s (node=%s task=%s)", e.Code, e.Message, e.NodeID, e.TaskID)
	case e.NodeID != "":
		return fmt.Sprintf("[%s] %s (node=%s)", e.Code, e.Message, e.NodeID)
	case e.TaskID != "":
		return fmt.Sprintf("[%s] %s (task=%s)", e.Code, e.Message, e.TaskID)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is against a bare Code or another *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Timestamp: time.Now()}
}

// New builds an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return newErr(code, fmt.Sprintf(format, args...))
}

// WithNode attaches a node id to e and returns e for chaining.
func (e *Error) WithNode(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// WithTask attaches a task id to e and returns e for chaining.
func (e *Error) WithTask(taskID string) *Error {
	e.TaskID = taskID
	return e
}

// Wrap attaches cause to e and returns e for chaining.
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}

// NotFound is a convenience constructor for the common UnknownEntity case.
func NotFound(kind, id string) *Error {
	return New(UnknownEntity, "%s %q not found", kind, id)
}
