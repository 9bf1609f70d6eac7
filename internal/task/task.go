package task

import (
	"slices"
	"strings"
	"time"
)

// Recurrence describes how a recurring task repeats.
type Recurrence struct {
	// Type is the interval rule.
	Type RecurringType `yaml:"type" json:"type"`

	// Interval multiplies the rule's base step (every N days, weeks, ...).
	Interval int `yaml:"interval" json:"interval"`

	// EndDate stops materialization once passed.
	EndDate *time.Time `yaml:"end_date,omitempty" json:"end_date,omitempty"`

	// Cron is a standard five-field cron expression, used only by custom rules.
	Cron string `yaml:"cron,omitempty" json:"cron,omitempty"`
}

// Task is a unit of trackable HR work.
type Task struct {
	// ID is assigned by the store and never reused.
	ID int64 `yaml:"id" json:"id"`

	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Priority Priority `yaml:"priority" json:"priority"`
	Status   Status   `yaml:"status" json:"status"`

	// AssignedTo is duplicate free and keeps insertion order for display.
	AssignedTo []string `yaml:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	AssignedBy string   `yaml:"assigned_by,omitempty" json:"assigned_by,omitempty"`

	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at" json:"updated_at"`
	DueDate     *time.Time `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	StartDate   *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`

	// Progress is a percentage in [0, 100].
	Progress       int     `yaml:"progress" json:"progress"`
	EstimatedHours float64 `yaml:"estimated_hours,omitempty" json:"estimated_hours,omitempty"`
	ActualHours    float64 `yaml:"actual_hours,omitempty" json:"actual_hours,omitempty"`

	// Dependencies lists tasks this task waits on.
	Dependencies []int64 `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// Dependents lists tasks waiting on this task. It is the exact inverse of
	// Dependencies across the store.
	Dependents []int64 `yaml:"dependents,omitempty" json:"dependents,omitempty"`

	IsRecurring bool        `yaml:"is_recurring,omitempty" json:"is_recurring,omitempty"`
	Recurrence  *Recurrence `yaml:"recurrence,omitempty" json:"recurrence,omitempty"`

	// ParentRecurringID is the schedule that materialized this task.
	ParentRecurringID string `yaml:"parent_recurring_id,omitempty" json:"parent_recurring_id,omitempty"`

	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`
	Department  string   `yaml:"department,omitempty" json:"department,omitempty"`
	Attachments []string `yaml:"attachments,omitempty" json:"attachments,omitempty"`
	Location    string   `yaml:"location,omitempty" json:"location,omitempty"`
}

// Draft holds the fields accepted when creating a task.
type Draft struct {
	Title          string      `yaml:"title" json:"title"`
	Description    string      `yaml:"description,omitempty" json:"description,omitempty"`
	Priority       Priority    `yaml:"priority,omitempty" json:"priority,omitempty"`
	Status         Status      `yaml:"status,omitempty" json:"status,omitempty"`
	AssignedTo     []string    `yaml:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	AssignedBy     string      `yaml:"assigned_by,omitempty" json:"assigned_by,omitempty"`
	DueDate        *time.Time  `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	StartDate      *time.Time  `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EstimatedHours float64     `yaml:"estimated_hours,omitempty" json:"estimated_hours,omitempty"`
	Dependencies   []int64     `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Recurrence     *Recurrence `yaml:"recurrence,omitempty" json:"recurrence,omitempty"`
	Tags           []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	Category       string      `yaml:"category,omitempty" json:"category,omitempty"`
	Department     string      `yaml:"department,omitempty" json:"department,omitempty"`
	Attachments    []string    `yaml:"attachments,omitempty" json:"attachments,omitempty"`
	Location       string      `yaml:"location,omitempty" json:"location,omitempty"`

	// ParentRecurringID is set when a schedule materializes an instance.
	ParentRecurringID string `yaml:"-" json:"-"`
}

// New builds a task from a draft. Dependencies are not copied; the store adds
// them one edge at a time so each can be cycle-checked.
func New(id int64, d Draft, now time.Time) *Task {
	t := &Task{
		ID:                id,
		Title:             d.Title,
		Description:       d.Description,
		Priority:          d.Priority,
		Status:            d.Status,
		AssignedTo:        Unique(d.AssignedTo),
		AssignedBy:        d.AssignedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
		DueDate:           cloneTime(d.DueDate),
		StartDate:         cloneTime(d.StartDate),
		EstimatedHours:    d.EstimatedHours,
		ParentRecurringID: d.ParentRecurringID,
		Tags:              slices.Clone(d.Tags),
		Category:          d.Category,
		Department:        d.Department,
		Attachments:       slices.Clone(d.Attachments),
		Location:          d.Location,
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if d.Recurrence != nil {
		t.IsRecurring = true
		t.Recurrence = d.Recurrence.Clone()
	}
	return t
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.AssignedTo = slices.Clone(t.AssignedTo)
	c.DueDate = cloneTime(t.DueDate)
	c.StartDate = cloneTime(t.StartDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.Dependencies = slices.Clone(t.Dependencies)
	c.Dependents = slices.Clone(t.Dependents)
	c.Recurrence = t.Recurrence.Clone()
	c.Tags = slices.Clone(t.Tags)
	c.Attachments = slices.Clone(t.Attachments)
	return &c
}

// Clone returns a deep copy of the recurrence.
func (r *Recurrence) Clone() *Recurrence {
	if r == nil {
		return nil
	}
	c := *r
	c.EndDate = cloneTime(r.EndDate)
	return &c
}

// IsAssignedTo reports whether user is among the assignees.
func (t *Task) IsAssignedTo(user string) bool {
	return slices.Contains(t.AssignedTo, user)
}

// IsOverdue reports whether the task is past due and still open.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !IsClosed(t.Status)
}

// HasTag reports whether the task carries tag, ignoring case.
func (t *Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if strings.EqualFold(have, tag) {
			return true
		}
	}
	return false
}

// Unique returns values with blanks and duplicates removed, first occurrence kept.
func Unique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Added returns the entries of next that are not in prev, in next's order.
func Added(prev, next []string) []string {
	var out []string
	for _, v := range next {
		if !slices.Contains(prev, v) {
			out = append(out, v)
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
