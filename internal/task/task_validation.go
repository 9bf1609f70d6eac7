package task

import (
	"fmt"
	"strings"
)

// ValidationError is one rejected field.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	msg := e.Field + ": " + e.Message
	if e.Value != "" {
		msg += fmt.Sprintf(" (got %q)", e.Value)
	}
	return msg
}

// ValidationErrors collects every rejected field of one input.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) HasErrors() bool { return len(e) != 0 }

// ToError returns e as an error, or nil when empty.
func (e ValidationErrors) ToError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// check appends a ValidationError when ok is false. A non-nil got is
// echoed back in the message.
func (e *ValidationErrors) check(ok bool, field, message string, got any) {
	if ok {
		return
	}
	ve := ValidationError{Field: field, Message: message}
	if got != nil {
		ve.Value = fmt.Sprint(got)
	}
	*e = append(*e, ve)
}

func (e *ValidationErrors) checkEnums(p Priority, s Status) {
	e.check(p == "" || IsValidPriority(p), "priority", "invalid priority", p)
	e.check(s == "" || IsValidStatus(s), "status", "invalid status", s)
}

// Validate checks a stored task.
func (t *Task) Validate() ValidationErrors {
	var errs ValidationErrors
	errs.check(t.Title != "", "title", "must not be empty", nil)
	errs.checkEnums(t.Priority, t.Status)
	errs.check(t.Progress >= 0 && t.Progress <= 100, "progress", "must be between 0 and 100", t.Progress)
	if t.Recurrence != nil {
		errs = append(errs, t.Recurrence.Validate()...)
	}
	return errs
}

// Validate checks a creation draft.
func (d Draft) Validate() ValidationErrors {
	var errs ValidationErrors
	errs.check(strings.TrimSpace(d.Title) != "", "title", "must not be empty", nil)
	errs.checkEnums(d.Priority, d.Status)
	errs.check(d.EstimatedHours >= 0, "estimated_hours", "must not be negative", nil)
	if d.Recurrence != nil {
		errs = append(errs, d.Recurrence.Validate()...)
	}
	return errs
}

// Validate checks the shape of a rule. Whether a cron expression parses is
// left to the scheduler.
func (r *Recurrence) Validate() ValidationErrors {
	var errs ValidationErrors
	errs.check(IsValidRecurringType(r.Type), "recurrence.type", "invalid recurrence type", r.Type)
	if r.Type == RecurCustom {
		errs.check(strings.TrimSpace(r.Cron) != "", "recurrence.cron", "custom recurrence requires a cron expression", nil)
	} else {
		errs.check(r.Interval >= 1, "recurrence.interval", "must be a positive integer", r.Interval)
	}
	return errs
}

// DependencyError rejects one dependency reference.
type DependencyError struct {
	TaskID    int64
	DependsOn int64
	Message   string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency error for task %d: %s", e.TaskID, e.Message)
}

// Self reports whether the rejected reference points back at the task.
func (e *DependencyError) Self() bool { return e.TaskID == e.DependsOn }

// ValidateDependencies rejects self references and references to tasks
// lookup does not know. Every bad reference is reported, in input order.
func ValidateDependencies(taskID int64, deps []int64, lookup Lookup) []*DependencyError {
	var errs []*DependencyError
	for _, dep := range deps {
		var msg string
		switch {
		case dep == taskID:
			msg = "task cannot depend on itself"
		case lookup(dep) == nil:
			msg = fmt.Sprintf("dependencies reference non-existent task %d", dep)
		default:
			continue
		}
		errs = append(errs, &DependencyError{TaskID: taskID, DependsOn: dep, Message: msg})
	}
	return errs
}
