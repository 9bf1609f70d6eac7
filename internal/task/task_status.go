// Package task holds the HR task model, its validation and the dependency
// graph between tasks.
package task

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusOnHold     Status = "on_hold"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	// StatusOverdue is only ever set by the tick sweep.
	StatusOverdue Status = "overdue"
)

type statusTraits struct {
	// done satisfies dependencies
	done bool
	// closed tasks are left out of overdue and upcoming views
	closed bool
	// open tasks may be promoted to overdue by the sweep
	open bool
}

// statuses is in display order.
var statuses = []struct {
	status Status
	statusTraits
}{
	{StatusPending, statusTraits{open: true}},
	{StatusInProgress, statusTraits{open: true}},
	{StatusOnHold, statusTraits{open: true}},
	{StatusCompleted, statusTraits{done: true, closed: true}},
	{StatusCancelled, statusTraits{closed: true}},
	{StatusOverdue, statusTraits{}},
}

func traitsOf(s Status) (statusTraits, bool) {
	for _, st := range statuses {
		if st.status == s {
			return st.statusTraits, true
		}
	}
	return statusTraits{}, false
}

// ValidStatuses lists every status.
func ValidStatuses() []Status {
	out := make([]Status, len(statuses))
	for i, st := range statuses {
		out[i] = st.status
	}
	return out
}

func IsValidStatus(s Status) bool {
	_, ok := traitsOf(s)
	return ok
}

// IsDone reports whether a dependency in status s counts as satisfied.
// Only completion does; a cancelled prerequisite still blocks.
func IsDone(s Status) bool {
	t, _ := traitsOf(s)
	return t.done
}

// IsClosed reports whether s is terminal.
func IsClosed(s Status) bool {
	t, _ := traitsOf(s)
	return t.closed
}

// CanBecomeOverdue reports whether the sweep may move s to overdue.
func CanBecomeOverdue(s Status) bool {
	t, _ := traitsOf(s)
	return t.open
}
