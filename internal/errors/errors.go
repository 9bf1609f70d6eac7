// Package errors provides structured error types for hrdesk.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for hrdesk.
const (
	// Task errors
	CodeTaskNotFound    Code = "TASK_NOT_FOUND"
	CodeDependencyCycle Code = "DEPENDENCY_CYCLE"
	CodeValidation      Code = "VALIDATION_FAILED"

	// CodeInvalidRange is reserved: out-of-range progress is clamped, never raised.
	CodeInvalidRange Code = "INVALID_RANGE"

	// Recurrence errors
	CodeRecurrenceInvalid Code = "RECURRENCE_INVALID"
	CodeScheduleNotFound  Code = "SCHEDULE_NOT_FOUND"

	// Storage errors
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
	CodeSchemaUnsupported  Code = "SCHEMA_UNSUPPORTED"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeTaskNotFound:       CategoryNotFound,
	CodeDependencyCycle:    CategoryConflict,
	CodeValidation:         CategoryBadRequest,
	CodeInvalidRange:       CategoryBadRequest,
	CodeRecurrenceInvalid:  CategoryBadRequest,
	CodeScheduleNotFound:   CategoryNotFound,
	CodePersistenceFailure: CategoryUnavailable,
	CodeSchemaUnsupported:  CategoryInternal,
	CodeConfigInvalid:      CategoryBadRequest,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	case CategoryUnavailable:
		return 503
	default:
		return 500
	}
}

// DeskError is the structured error type for hrdesk.
type DeskError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *DeskError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *DeskError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *DeskError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *DeskError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *DeskError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *DeskError) MarshalJSON() ([]byte, error) {
	type alias DeskError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a DeskError with the same code.
func (e *DeskError) Is(target error) bool {
	t, ok := target.(*DeskError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *DeskError) WithCause(err error) *DeskError {
	return &DeskError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrNotFound          = &DeskError{Code: CodeTaskNotFound, What: "task not found"}
	ErrCycle             = &DeskError{Code: CodeDependencyCycle, What: "dependency cycle"}
	ErrInvalid           = &DeskError{Code: CodeValidation, What: "validation failed"}
	ErrPersistence       = &DeskError{Code: CodePersistenceFailure, What: "persistence failure"}
	ErrRecurrence        = &DeskError{Code: CodeRecurrenceInvalid, What: "invalid recurrence"}
	ErrScheduleMissing   = &DeskError{Code: CodeScheduleNotFound, What: "schedule not found"}
	ErrSchemaUnsupported = &DeskError{Code: CodeSchemaUnsupported, What: "unsupported schema version"}
	ErrConfig            = &DeskError{Code: CodeConfigInvalid, What: "invalid configuration"}
)

// --- Error constructors ---

// ErrTaskNotFound returns an error when a task doesn't exist.
func ErrTaskNotFound(id int64) *DeskError {
	return &DeskError{
		Code: CodeTaskNotFound,
		What: fmt.Sprintf("task %d not found", id),
		Why:  "No task with this ID exists in the store",
		Fix:  "Run 'hrdesk task list' to see available tasks",
	}
}

// ErrTasksNotFound names every missing task ID at once.
func ErrTasksNotFound(ids []int64) *DeskError {
	if len(ids) == 1 {
		return ErrTaskNotFound(ids[0])
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return &DeskError{
		Code: CodeTaskNotFound,
		What: "tasks " + strings.Join(parts, ", ") + " not found",
		Why:  "No tasks with these IDs exist in the store",
		Fix:  "Run 'hrdesk task list' to see available tasks",
	}
}

// ErrDependencyCycle returns an error when an edge would close a cycle.
// path lists the task IDs along the cycle, starting and ending at the same task.
func ErrDependencyCycle(taskID, dependsOn int64, path []int64) *DeskError {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	why := "Tasks may not wait on each other, directly or transitively"
	if len(parts) > 0 {
		why = "Cycle: " + strings.Join(parts, " -> ")
	}
	return &DeskError{
		Code: CodeDependencyCycle,
		What: fmt.Sprintf("task %d cannot depend on task %d", taskID, dependsOn),
		Why:  why,
		Fix:  fmt.Sprintf("Run 'hrdesk deps chain %d' to inspect the existing chain", dependsOn),
	}
}

// ErrValidation wraps field validation failures.
func ErrValidation(cause error) *DeskError {
	return &DeskError{
		Code:  CodeValidation,
		What:  "invalid task fields",
		Cause: cause,
	}
}

// ErrRecurrenceInvalid returns an error for an unusable recurrence rule.
func ErrRecurrenceInvalid(reason string) *DeskError {
	return &DeskError{
		Code: CodeRecurrenceInvalid,
		What: "invalid recurrence rule",
		Why:  reason,
		Fix:  "Use daily, weekly, monthly, quarterly or yearly, or give custom rules a cron expression",
	}
}

// ErrScheduleNotFound returns an error when a recurring schedule doesn't exist.
func ErrScheduleNotFound(id string) *DeskError {
	return &DeskError{
		Code: CodeScheduleNotFound,
		What: fmt.Sprintf("schedule %s not found", id),
		Fix:  "Run 'hrdesk recurring list' to see schedules",
	}
}

// ErrPersistenceFailure wraps a storage boundary failure.
func ErrPersistenceFailure(op string, cause error) *DeskError {
	return &DeskError{
		Code:  CodePersistenceFailure,
		What:  fmt.Sprintf("storage %s failed", op),
		Cause: cause,
	}
}

// ErrSchemaVersion returns an error when a snapshot was written by a newer release.
func ErrSchemaVersion(got, supported int) *DeskError {
	return &DeskError{
		Code: CodeSchemaUnsupported,
		What: fmt.Sprintf("snapshot schema version %d is not supported", got),
		Why:  fmt.Sprintf("This build reads schema versions up to %d", supported),
		Fix:  "Upgrade hrdesk before opening this data",
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *DeskError {
	return &DeskError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .hrdesk/config.yaml and fix the invalid field",
	}
}

// AsDeskError attempts to convert an error to a DeskError.
// Returns nil if the error is not a DeskError.
func AsDeskError(err error) *DeskError {
	var deskErr *DeskError
	if stderrors.As(err, &deskErr) {
		return deskErr
	}
	return nil
}

// Wrap wraps a generic error into a DeskError with unknown code.
func Wrap(err error, what string) *DeskError {
	return &DeskError{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
