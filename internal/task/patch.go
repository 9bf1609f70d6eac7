package task

import (
	"slices"
	"time"
)

// Patch lists the fields an update may change. A nil pointer leaves the field
// untouched. Nullable timestamps are cleared through the Clear flags.
type Patch struct {
	Title          *string   `json:"title,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Priority       *Priority `json:"priority,omitempty"`
	Status         *Status   `json:"status,omitempty"`
	AssignedTo     *[]string `json:"assigned_to,omitempty"`
	AssignedBy     *string   `json:"assigned_by,omitempty"`
	Progress       *int      `json:"progress,omitempty"`
	EstimatedHours *float64  `json:"estimated_hours,omitempty"`
	ActualHours    *float64  `json:"actual_hours,omitempty"`

	DueDate        *time.Time `json:"due_date,omitempty"`
	ClearDueDate   bool       `json:"clear_due_date,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	ClearStartDate bool       `json:"clear_start_date,omitempty"`

	// Dependencies, when set, replaces the whole edge set.
	Dependencies *[]int64 `json:"dependencies,omitempty"`

	Tags        *[]string `json:"tags,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Department  *string   `json:"department,omitempty"`
	Attachments *[]string `json:"attachments,omitempty"`
	Location    *string   `json:"location,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Validate checks the patch before it is merged.
func (p Patch) Validate() ValidationErrors {
	var errs ValidationErrors
	errs.check(p.Title == nil || *p.Title != "", "title", "must not be empty", nil)
	if p.Priority != nil {
		errs.checkEnums(*p.Priority, "")
	}
	if p.Status != nil {
		errs.checkEnums("", *p.Status)
	}
	errs.check(p.EstimatedHours == nil || *p.EstimatedHours >= 0, "estimated_hours", "must not be negative", nil)
	errs.check(p.ActualHours == nil || *p.ActualHours >= 0, "actual_hours", "must not be negative", nil)
	errs.check(p.DueDate == nil || !p.ClearDueDate, "due_date", "cannot set and clear at once", nil)
	errs.check(p.StartDate == nil || !p.ClearStartDate, "start_date", "cannot set and clear at once", nil)
	return errs
}

// Apply merges the descriptive fields of the patch into t. Status,
// dependencies and progress side effects are owned by the store and are
// not touched here, except that Progress is clamped and copied.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		t.AssignedTo = Unique(*p.AssignedTo)
	}
	if p.AssignedBy != nil {
		t.AssignedBy = *p.AssignedBy
	}
	if p.Progress != nil {
		t.Progress = ClampProgress(*p.Progress)
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.ActualHours != nil {
		t.ActualHours = *p.ActualHours
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		t.DueDate = cloneTime(p.DueDate)
	}
	switch {
	case p.ClearStartDate:
		t.StartDate = nil
	case p.StartDate != nil:
		t.StartDate = cloneTime(p.StartDate)
	}
	if p.Tags != nil {
		t.Tags = slices.Clone(*p.Tags)
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Department != nil {
		t.Department = *p.Department
	}
	if p.Attachments != nil {
		t.Attachments = slices.Clone(*p.Attachments)
	}
	if p.Location != nil {
		t.Location = *p.Location
	}
}

// ClampProgress limits a progress value to [0, 100].
func ClampProgress(v int) int {
	return min(max(v, 0), 100)
}
