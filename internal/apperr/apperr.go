// Package apperr defines structured error types for the API.
// Errors carry a machine-readable code, a human-readable message,
// and optional details for the dashboard client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error code constants: uppercase, underscore-separated, stable across minor versions.
const (
	ProjectNotFound    = "PROJECT_NOT_FOUND"
	TaskNotFound       = "TASK_NOT_FOUND"
	InvalidInput       = "INVALID_INPUT"
	InvalidDate        = "INVALID_DATE"
	InvalidDateOrder   = "INVALID_DATE_ORDER"
	InvalidViewMode    = "INVALID_VIEW_MODE"
	OutsideTimeline    = "OUTSIDE_TIMELINE"
	DropRejected       = "DROP_REJECTED"
	DragInProgress     = "DRAG_IN_PROGRESS"
	NoActiveDrag       = "NO_ACTIVE_DRAG"
	TaskBusy           = "TASK_BUSY"
	TaskUnscheduled    = "TASK_UNSCHEDULED"
	UpdateFailed       = "UPDATE_FAILED"
	HistoryBusy        = "HISTORY_BUSY"
	NothingToUndo      = "NOTHING_TO_UNDO"
	NothingToRedo      = "NOTHING_TO_REDO"
	DependencyCycle    = "DEPENDENCY_CYCLE"
	DependencyNotFound = "DEPENDENCY_NOT_FOUND"
	SelfReference      = "SELF_REFERENCE"
	InternalError      = "INTERNAL_ERROR"
)

// Error represents a structured API error with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that keeps err reachable through errors.Is/As.
func Wrap(code string, err error, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithDetails returns a copy of the error with the given details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// HTTPStatus maps the error code to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ProjectNotFound, TaskNotFound, DependencyNotFound:
		return http.StatusNotFound
	case DragInProgress, TaskBusy, HistoryBusy, NoActiveDrag, NothingToUndo, NothingToRedo:
		return http.StatusConflict
	case OutsideTimeline, DropRejected, InvalidDateOrder, DependencyCycle, SelfReference, TaskUnscheduled:
		return http.StatusUnprocessableEntity
	case UpdateFailed:
		return http.StatusBadGateway
	case InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// CodeOf returns the code of err when it is (or wraps) an *Error,
// otherwise InternalError.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return InternalError
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
