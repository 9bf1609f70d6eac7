package engine

import (
	"slices"
	"strings"
	"time"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/recurrence"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// SortField orders search results.
type SortField string

const (
	SortByID       SortField = "id"
	SortByDue      SortField = "due"
	SortByPriority SortField = "priority"
)

// Filter narrows SearchTasks. Zero-valued fields match everything.
type Filter struct {
	Status     task.Status   `json:"status,omitempty"`
	Priority   task.Priority `json:"priority,omitempty"`
	Assignee   string        `json:"assignee,omitempty"`
	Department string        `json:"department,omitempty"`
	Category   string        `json:"category,omitempty"`

	// DueAfter and DueBefore bound the due date inclusively. Tasks without
	// a due date never match a bounded filter.
	DueAfter  *time.Time `json:"due_after,omitempty"`
	DueBefore *time.Time `json:"due_before,omitempty"`

	// Tags must all be present, compared without case.
	Tags []string `json:"tags,omitempty"`

	Sort SortField `json:"sort,omitempty"`
}

func (f Filter) match(t *task.Task) bool {
	switch {
	case f.Status != "" && t.Status != f.Status:
		return false
	case f.Priority != "" && t.Priority != f.Priority:
		return false
	case f.Assignee != "" && !t.IsAssignedTo(f.Assignee):
		return false
	case f.Department != "" && !strings.EqualFold(t.Department, f.Department):
		return false
	case f.Category != "" && !strings.EqualFold(t.Category, f.Category):
		return false
	}
	if f.DueAfter != nil || f.DueBefore != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueAfter != nil && t.DueDate.Before(*f.DueAfter) {
			return false
		}
		if f.DueBefore != nil && t.DueDate.After(*f.DueBefore) {
			return false
		}
	}
	for _, tag := range f.Tags {
		if !t.HasTag(tag) {
			return false
		}
	}
	return true
}

// matchText reports whether query appears in the title, description or a
// tag, ignoring case. q must already be lower case.
func matchText(t *task.Task, q string) bool {
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	return slices.ContainsFunc(t.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), q)
	})
}

// GetTask returns a copy of one task.
func (e *Engine) GetTask(id int64) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tasks[id]
	if t == nil {
		return nil, deskerrors.ErrTaskNotFound(id)
	}
	return t.Clone(), nil
}

// ListTasks returns every task ordered by ID.
func (e *Engine) ListTasks() []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(nil)
}

// TasksByUser returns tasks assigned to user.
func (e *Engine) TasksByUser(user string) []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(t *task.Task) bool { return t.IsAssignedTo(user) })
}

// TasksByStatus returns tasks in status s.
func (e *Engine) TasksByStatus(s task.Status) []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(t *task.Task) bool { return t.Status == s })
}

// TasksByPriority returns tasks with priority p.
func (e *Engine) TasksByPriority(p task.Priority) []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(t *task.Task) bool { return t.Priority == p })
}

// OverdueTasks returns open tasks whose due date is before now, whatever
// their status field says.
func (e *Engine) OverdueTasks(now time.Time) []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sorted(func(t *task.Task) bool { return t.IsOverdue(now) })
}

// UpcomingTasks returns tasks not yet completed that are due within
// [now, now+windowDays days].
func (e *Engine) UpcomingTasks(now time.Time, windowDays int) []*task.Task {
	end := now.AddDate(0, 0, windowDays)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.sorted(func(t *task.Task) bool {
		return t.DueDate != nil && t.Status != task.StatusCompleted &&
			!t.DueDate.Before(now) && !t.DueDate.After(end)
	})
	slices.SortStableFunc(out, byDue)
	return out
}

// SearchTasks matches query against title, description and tags, then
// applies f.
func (e *Engine) SearchTasks(query string, f Filter) []*task.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	e.mu.Lock()
	out := e.sorted(func(t *task.Task) bool { return matchText(t, q) && f.match(t) })
	e.mu.Unlock()

	switch f.Sort {
	case SortByDue:
		slices.SortStableFunc(out, byDue)
	case SortByPriority:
		slices.SortStableFunc(out, byPriority)
	}
	return out
}

// CanStart reports whether every dependency of the task is completed.
func (e *Engine) CanStart(id int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tasks[id]
	if t == nil {
		return false, deskerrors.ErrTaskNotFound(id)
	}
	return task.CanStart(t, e.lookup), nil
}

// DependencyChain returns a lazy walk of the task's transitive
// dependencies. The walk reads a copy of the store taken now, so it is not
// affected by later mutations.
func (e *Engine) DependencyChain(id int64) (*task.Chain, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tasks[id] == nil {
		return nil, deskerrors.ErrTaskNotFound(id)
	}
	view := make(map[int64]*task.Task, len(e.tasks))
	for k, t := range e.tasks {
		view[k] = t.Clone()
	}
	return task.NewChain(id, task.MapLookup(view)), nil
}

// Schedules returns every recurring schedule, active or not.
func (e *Engine) Schedules() []*recurrence.Schedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.List()
}

// Schedule returns one schedule by ID.
func (e *Engine) Schedule(id string) (*recurrence.Schedule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Get(id)
}

// Stats summarises the store.
type Stats struct {
	Total           int                 `json:"total"`
	ByStatus        map[task.Status]int `json:"by_status"`
	Overdue         int                 `json:"overdue"`
	ActiveSchedules int                 `json:"active_schedules"`
}

// Stats counts tasks by status. Overdue counts open tasks past due at now.
func (e *Engine) Stats(now time.Time) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{Total: len(e.tasks), ByStatus: make(map[task.Status]int)}
	for _, t := range e.tasks {
		s.ByStatus[t.Status]++
		if t.IsOverdue(now) {
			s.Overdue++
		}
	}
	for _, sc := range e.sched.List() {
		if sc.IsActive {
			s.ActiveSchedules++
		}
	}
	return s
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}
