package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/events"
	"github.com/randalmurphal/hrdesk/internal/recurrence"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// CreateTask adds a task built from d. Unknown dependencies are all reported
// before anything is inserted; if an edge is then rejected the whole creation
// is undone, including the ID. A recurring draft also gets a schedule.
func (e *Engine) CreateTask(ctx context.Context, d task.Draft) (*task.Task, error) {
	if err := validateDraft(d); err != nil {
		return nil, e.finish(ctx, "create", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.begin("create")
	t, err := e.create(c, d)
	if err != nil {
		c.rollback()
		return nil, e.finish(ctx, "create", err)
	}
	if t.Recurrence != nil {
		if _, err := e.sched.Create(t, c.now); err != nil {
			c.rollback()
			return nil, e.finish(ctx, "create", err)
		}
	}

	c.commit(ctx)
	e.logger.Info("task created", "task", t.ID, "title", t.Title)
	return t.Clone(), e.finish(ctx, "create", nil)
}

// Import creates every draft in one mutation. Recurring drafts are rejected;
// on any error nothing is created.
func (e *Engine) Import(ctx context.Context, drafts []task.Draft) ([]*task.Task, error) {
	for i, d := range drafts {
		if d.Recurrence != nil {
			return nil, e.finish(ctx, "import",
				deskerrors.ErrValidation(fmt.Errorf("row %d: recurring tasks cannot be imported", i+1)))
		}
		if err := validateDraft(d); err != nil {
			return nil, e.finish(ctx, "import", fmt.Errorf("row %d: %w", i+1, err))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.begin("import")
	out := make([]*task.Task, 0, len(drafts))
	for i, d := range drafts {
		t, err := e.create(c, d)
		if err != nil {
			c.rollback()
			return nil, e.finish(ctx, "import", fmt.Errorf("row %d: %w", i+1, err))
		}
		out = append(out, t)
	}
	if len(out) > 0 {
		c.commit(ctx)
	}
	for i, t := range out {
		out[i] = t.Clone()
	}
	e.logger.Info("tasks imported", "count", len(out))
	return out, e.finish(ctx, "import", nil)
}

func validateDraft(d task.Draft) error {
	if d.Recurrence != nil {
		if errs := d.Recurrence.Validate(); errs.HasErrors() {
			return deskerrors.ErrRecurrenceInvalid(errs.Error())
		}
	}
	if errs := d.Validate(); errs.HasErrors() {
		return deskerrors.ErrValidation(errs.ToError())
	}
	return nil
}

// create inserts a task for d within c. The caller rolls back on error.
func (e *Engine) create(c *change, d task.Draft) (*task.Task, error) {
	id := e.nextID()
	if err := e.checkDependencies(id, d.Dependencies); err != nil {
		return nil, err
	}
	t := task.New(id, d, c.now)
	t.Progress = 0
	if t.Status == task.StatusCompleted {
		t.Progress = 100
		done := c.now
		t.CompletedAt = &done
	}
	c.insert(t)

	for _, depID := range d.Dependencies {
		if err := e.addEdge(c, t.ID, depID); err != nil {
			return nil, err
		}
	}

	c.notify(t, events.NotifyCreated, "", fmt.Sprintf("Task #%d created: %s", t.ID, t.Title))
	for _, user := range t.AssignedTo {
		c.notify(t, events.NotifyAssigned, user, fmt.Sprintf("You were assigned task #%d: %s", t.ID, t.Title))
	}
	return t, nil
}

// addEdge records that taskID waits on dependsOnID. Existing edges are left
// unchanged. Nothing is modified when the edge is rejected.
func (e *Engine) addEdge(c *change, taskID, dependsOnID int64) error {
	from := e.tasks[taskID]
	if from == nil {
		return deskerrors.ErrTaskNotFound(taskID)
	}
	if err := e.checkDependencies(taskID, []int64{dependsOnID}); err != nil {
		return err
	}
	if slices.Contains(from.Dependencies, dependsOnID) {
		return nil
	}
	if path := task.DetectCycle(taskID, dependsOnID, e.lookup); path != nil {
		return deskerrors.ErrDependencyCycle(taskID, dependsOnID, path)
	}
	task.Link(c.touch(taskID), c.touch(dependsOnID))
	return nil
}

// checkDependencies rejects a dependency list before any edge is touched.
// A self reference is reported as a cycle; otherwise every missing ID is
// named in one error.
func (e *Engine) checkDependencies(taskID int64, deps []int64) error {
	bad := task.ValidateDependencies(taskID, deps, e.lookup)
	if len(bad) == 0 {
		return nil
	}
	missing := make([]int64, 0, len(bad))
	for _, de := range bad {
		if de.Self() {
			return deskerrors.ErrDependencyCycle(taskID, taskID, []int64{taskID, taskID})
		}
		missing = append(missing, de.DependsOn)
	}
	return deskerrors.ErrTasksNotFound(missing)
}

// removeEdge drops the edge if present. A dangling reference to a task that
// no longer exists is removed too.
func (e *Engine) removeEdge(c *change, taskID, dependsOnID int64) {
	from := c.touch(taskID)
	if to := c.touch(dependsOnID); to != nil {
		task.Unlink(from, to)
		return
	}
	task.Strip(from, dependsOnID)
}

// UpdateTask merges p into the task. A status change runs the status
// handlers; a dependency list replaces every existing edge.
func (e *Engine) UpdateTask(ctx context.Context, id int64, p task.Patch) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.update(ctx, "update", id, p)
	return t, e.finish(ctx, "update", err)
}

// AssignTask adds users to the task's assignees.
func (e *Engine) AssignTask(ctx context.Context, id int64, users ...string) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.tasks[id]
	if cur == nil {
		return nil, e.finish(ctx, "assign", deskerrors.ErrTaskNotFound(id))
	}
	next := task.Unique(append(slices.Clone(cur.AssignedTo), users...))
	t, err := e.update(ctx, "assign", id, task.Patch{AssignedTo: &next})
	return t, e.finish(ctx, "assign", err)
}

// UnassignTask removes users from the task's assignees.
func (e *Engine) UnassignTask(ctx context.Context, id int64, users ...string) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.tasks[id]
	if cur == nil {
		return nil, e.finish(ctx, "unassign", deskerrors.ErrTaskNotFound(id))
	}
	next := slices.DeleteFunc(slices.Clone(cur.AssignedTo), func(u string) bool {
		return slices.Contains(users, u)
	})
	t, err := e.update(ctx, "unassign", id, task.Patch{AssignedTo: &next})
	return t, e.finish(ctx, "unassign", err)
}

// UpdateTaskProgress sets progress, clamped to [0, 100]. Reaching 100
// completes the task from any status; any progress on a pending task starts
// it. actualHours is optional.
func (e *Engine) UpdateTaskProgress(ctx context.Context, id int64, progress int, actualHours *float64) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.tasks[id]
	if cur == nil {
		return nil, e.finish(ctx, "progress", deskerrors.ErrTaskNotFound(id))
	}
	progress = task.ClampProgress(progress)
	p := task.Patch{Progress: &progress, ActualHours: actualHours}
	if status, ok := progressStatus(cur.Status, progress); ok {
		p.Status = &status
	}
	t, err := e.update(ctx, "progress", id, p)
	return t, e.finish(ctx, "progress", err)
}

// progressStatus returns the status implied by a new progress value.
func progressStatus(cur task.Status, progress int) (task.Status, bool) {
	switch {
	case progress == 100 && cur != task.StatusCompleted:
		return task.StatusCompleted, true
	case progress > 0 && cur == task.StatusPending:
		return task.StatusInProgress, true
	}
	return "", false
}

// update applies p to task id under the held lock.
func (e *Engine) update(ctx context.Context, op string, id int64, p task.Patch) (*task.Task, error) {
	if errs := p.Validate(); errs.HasErrors() {
		return nil, deskerrors.ErrValidation(errs.ToError())
	}
	if e.tasks[id] == nil {
		return nil, deskerrors.ErrTaskNotFound(id)
	}

	c := e.begin(op)
	t := c.touch(id)
	prev := c.saved[id]

	p.Apply(t)
	t.UpdatedAt = c.now

	// Progress set to 100 completes the task whatever status came with it.
	// Reopening a completed task without touching progress keeps 100.
	if p.Progress != nil && t.Progress == 100 && (p.Status == nil || *p.Status != task.StatusCompleted) {
		done := task.StatusCompleted
		p.Status = &done
	}

	if p.Dependencies != nil {
		if err := e.checkDependencies(id, *p.Dependencies); err != nil {
			c.rollback()
			return nil, err
		}
		for _, old := range slices.Clone(t.Dependencies) {
			e.removeEdge(c, id, old)
		}
		for _, depID := range *p.Dependencies {
			if err := e.addEdge(c, id, depID); err != nil {
				c.rollback()
				return nil, err
			}
		}
	}

	if p.Status != nil && *p.Status != prev.Status {
		e.changeStatus(c, t, prev.Status, *p.Status)
	}

	for _, user := range task.Added(prev.AssignedTo, t.AssignedTo) {
		c.notify(t, events.NotifyAssigned, user, fmt.Sprintf("You were assigned task #%d: %s", t.ID, t.Title))
	}

	c.commit(ctx)
	return t.Clone(), nil
}

// changeStatus moves t to next and runs the entry and exit handlers.
func (e *Engine) changeStatus(c *change, t *task.Task, prev, next task.Status) {
	t.Status = next

	if prev == task.StatusCompleted {
		t.CompletedAt = nil
	}
	if next == task.StatusCompleted {
		t.Progress = 100
		if t.CompletedAt == nil {
			done := c.now
			t.CompletedAt = &done
		}
		target := t.AssignedBy
		c.notify(t, events.NotifyCompleted, target, fmt.Sprintf("Task #%d completed: %s", t.ID, t.Title))

		for _, depID := range task.UnblockedBy(t.ID, e.lookup) {
			dep := e.tasks[depID]
			c.notifyAssignees(dep, events.NotifyUnblocked,
				fmt.Sprintf("Task #%d can start: its dependencies are complete", dep.ID))
		}
		return
	}

	c.notifyAssignees(t, events.NotifyStatusChanged,
		fmt.Sprintf("Task #%d moved from %s to %s", t.ID, statusLabel(prev), statusLabel(next)))
}

func statusLabel(s task.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// DeleteTask removes a task, strips every edge that references it and stops
// its recurring schedule. It returns the removed task.
func (e *Engine) DeleteTask(ctx context.Context, id int64) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.tasks[id]
	if t == nil {
		return nil, e.finish(ctx, "delete", deskerrors.ErrTaskNotFound(id))
	}

	c := e.begin("delete")
	for _, otherID := range e.sortedIDs() {
		other := e.tasks[otherID]
		if otherID == id {
			continue
		}
		if slices.Contains(other.Dependencies, id) || slices.Contains(other.Dependents, id) {
			task.Strip(c.touch(otherID), id)
		}
	}
	delete(e.tasks, id)
	delete(e.reminded, id)
	if e.sched.Deactivate(id) {
		e.logger.Info("recurring schedule deactivated", "parent", id)
	}

	c.commit(ctx, id)
	e.logger.Info("task deleted", "task", id)
	return t, e.finish(ctx, "delete", nil)
}

// AddDependency makes id wait on dependsOn. Adding an existing edge changes
// nothing.
func (e *Engine) AddDependency(ctx context.Context, id, dependsOn int64) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.tasks[id]
	if t != nil && e.tasks[dependsOn] != nil && slices.Contains(t.Dependencies, dependsOn) {
		return t.Clone(), e.finish(ctx, "add_dependency", nil)
	}

	c := e.begin("add_dependency")
	if err := e.addEdge(c, id, dependsOn); err != nil {
		return nil, e.finish(ctx, "add_dependency", err)
	}
	t.UpdatedAt = c.now
	c.commit(ctx)
	return t.Clone(), e.finish(ctx, "add_dependency", nil)
}

// RemoveDependency drops the edge if present. Removing a missing edge
// changes nothing.
func (e *Engine) RemoveDependency(ctx context.Context, id, dependsOn int64) (*task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.tasks[id]
	if t == nil {
		return nil, e.finish(ctx, "remove_dependency", deskerrors.ErrTaskNotFound(id))
	}
	if !slices.Contains(t.Dependencies, dependsOn) {
		return t.Clone(), e.finish(ctx, "remove_dependency", nil)
	}

	c := e.begin("remove_dependency")
	e.removeEdge(c, id, dependsOn)
	t.UpdatedAt = c.now
	c.commit(ctx)
	return t.Clone(), e.finish(ctx, "remove_dependency", nil)
}

// CreateSchedule makes task id recurring under rule. An active schedule the
// task already has is deactivated first.
func (e *Engine) CreateSchedule(ctx context.Context, id int64, rule task.Recurrence) (*recurrence.Schedule, error) {
	if errs := rule.Validate(); errs.HasErrors() {
		return nil, e.finish(ctx, "create_schedule", deskerrors.ErrRecurrenceInvalid(errs.Error()))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tasks[id] == nil {
		return nil, e.finish(ctx, "create_schedule", deskerrors.ErrTaskNotFound(id))
	}

	c := e.begin("create_schedule")
	t := c.touch(id)
	t.IsRecurring = true
	t.Recurrence = rule.Clone()
	t.UpdatedAt = c.now

	// Build the new schedule before retiring the old one so a bad rule
	// leaves the existing schedule running.
	old := e.sched.ForParent(id)
	sc, err := e.sched.Create(t, c.now)
	if err != nil {
		c.rollback()
		return nil, e.finish(ctx, "create_schedule", err)
	}
	if old != nil {
		// old came from ForParent under the same lock, so Cancel finds it.
		_, _ = e.sched.Cancel(old.ID)
	}

	c.commit(ctx)
	e.logger.Info("recurring schedule created", "schedule", sc.ID, "parent", id, "next_due", sc.NextDue)
	return sc, e.finish(ctx, "create_schedule", nil)
}

// CancelSchedule stops a schedule. Its history is kept and the parent task
// is no longer marked recurring.
func (e *Engine) CancelSchedule(ctx context.Context, scheduleID string) (*recurrence.Schedule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sc, err := e.sched.Cancel(scheduleID)
	if err != nil {
		return nil, e.finish(ctx, "cancel_schedule", err)
	}

	c := e.begin("cancel_schedule")
	if parent := c.touch(sc.ParentTaskID); parent != nil && e.sched.ForParent(parent.ID) == nil {
		parent.IsRecurring = false
		parent.UpdatedAt = c.now
	}
	c.commit(ctx)
	return sc, e.finish(ctx, "cancel_schedule", nil)
}
