package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/hrdesk/internal/events"
	"github.com/randalmurphal/hrdesk/internal/recurrence"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// TickReport summarises one tick.
type TickReport struct {
	At time.Time `json:"at"`
	// Overdue lists tasks the sweep moved to overdue.
	Overdue []int64 `json:"overdue,omitempty"`
	// DueSoon lists tasks that got a due reminder.
	DueSoon []int64 `json:"due_soon,omitempty"`
	// Created lists recurring instances materialized.
	Created []recurrence.Occurrence `json:"created,omitempty"`
	// Deactivated lists schedules whose end date passed.
	Deactivated []string `json:"deactivated,omitempty"`
}

// Changed reports whether the tick mutated the store.
func (r TickReport) Changed() bool {
	return len(r.Overdue) > 0 || len(r.Created) > 0 || len(r.Deactivated) > 0
}

// Tick runs the periodic work at the clock's current time: the overdue
// sweep, due reminders and recurring materialization. Ticks never overlap;
// a tick that arrives while another runs waits for it.
//
// Errors from individual schedules are joined and returned; the rest of the
// tick still applies.
func (e *Engine) Tick(ctx context.Context) (TickReport, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.begin("tick")
	report := TickReport{At: c.now}

	report.Overdue = e.sweepOverdue(c)
	report.DueSoon = e.remindDue(c)

	res, err := e.sched.Tick(ctx, c.now, recurrence.MaterializerFunc(
		func(_ context.Context, d task.Draft) (int64, error) {
			return e.materialize(c, d)
		}))
	report.Created = res.Created
	report.Deactivated = res.Deactivated

	if report.Changed() {
		c.commit(ctx)
	} else {
		for _, n := range c.pending {
			e.events.Notify(n)
		}
	}

	e.metrics.Tick(ctx, time.Since(start), len(report.Created), err)
	if err != nil {
		e.logger.Warn("tick finished with errors", "error", err)
	}
	e.logger.Debug("tick complete",
		"overdue", len(report.Overdue),
		"due_soon", len(report.DueSoon),
		"created", len(report.Created),
		"deactivated", len(report.Deactivated))
	return report, err
}

// sweepOverdue moves open tasks past their due date to overdue.
func (e *Engine) sweepOverdue(c *change) []int64 {
	var ids []int64
	for _, id := range e.sortedIDs() {
		t := e.tasks[id]
		if !task.CanBecomeOverdue(t.Status) || t.DueDate == nil || !t.DueDate.Before(c.now) {
			continue
		}
		t = c.touch(id)
		prev := t.Status
		t.Status = task.StatusOverdue
		t.UpdatedAt = c.now
		c.notifyAssignees(t, events.NotifyOverdue,
			fmt.Sprintf("Task #%d is overdue (was %s, due %s)", t.ID, statusLabel(prev), t.DueDate.Format(time.DateOnly)))
		ids = append(ids, id)
	}
	return ids
}

// remindDue sends one reminder per task and due date for open tasks due
// within the due-soon window.
func (e *Engine) remindDue(c *change) []int64 {
	if e.dueSoon <= 0 {
		return nil
	}
	horizon := c.now.Add(e.dueSoon)

	var ids []int64
	for _, id := range e.sortedIDs() {
		t := e.tasks[id]
		if t.DueDate == nil || task.IsClosed(t.Status) || t.Status == task.StatusOverdue {
			continue
		}
		due := *t.DueDate
		if due.Before(c.now) || due.After(horizon) {
			continue
		}
		if sent, ok := e.reminded[id]; ok && sent.Equal(due) {
			continue
		}
		e.reminded[id] = due
		c.notifyAssignees(t, events.NotifyDue,
			fmt.Sprintf("Task #%d is due %s: %s", t.ID, task.FormatDue(&due, c.now), t.Title))
		ids = append(ids, id)
	}
	return ids
}

// materialize creates one recurring instance inside the tick's change.
func (e *Engine) materialize(c *change, d task.Draft) (int64, error) {
	if errs := d.Validate(); errs.HasErrors() {
		return 0, errors.New(errs.Error())
	}
	t, err := e.create(c, d)
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}
