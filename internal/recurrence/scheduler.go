package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// TitleDateLayout is appended to materialized instance titles.
const TitleDateLayout = "2006-01-02"

// Schedule drives periodic materialization of one recurring task.
type Schedule struct {
	ID           string             `yaml:"id" json:"id"`
	ParentTaskID int64              `yaml:"parent_task_id" json:"parent_task_id"`
	Type         task.RecurringType `yaml:"type" json:"type"`
	Interval     int                `yaml:"interval" json:"interval"`
	Cron         string             `yaml:"cron,omitempty" json:"cron,omitempty"`
	NextDue      time.Time          `yaml:"next_due" json:"next_due"`
	EndDate      *time.Time         `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	IsActive     bool               `yaml:"is_active" json:"is_active"`

	// CreatedInstances lists materialized task IDs, oldest first.
	CreatedInstances []int64 `yaml:"created_instances,omitempty" json:"created_instances,omitempty"`

	// Template snapshots the parent's descriptive fields at creation time.
	Template task.Draft `yaml:"template" json:"template"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Clone returns a deep copy of the schedule.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndDate != nil {
		end := *s.EndDate
		c.EndDate = &end
	}
	c.CreatedInstances = slices.Clone(s.CreatedInstances)
	c.Template.AssignedTo = slices.Clone(s.Template.AssignedTo)
	c.Template.Tags = slices.Clone(s.Template.Tags)
	c.Template.Attachments = slices.Clone(s.Template.Attachments)
	return &c
}

// Materializer creates the task for one due occurrence and returns its ID.
type Materializer interface {
	Materialize(ctx context.Context, d task.Draft) (int64, error)
}

// MaterializerFunc adapts a function to Materializer.
type MaterializerFunc func(ctx context.Context, d task.Draft) (int64, error)

// Materialize calls f.
func (f MaterializerFunc) Materialize(ctx context.Context, d task.Draft) (int64, error) {
	return f(ctx, d)
}

// Occurrence records one instance created by a tick.
type Occurrence struct {
	ScheduleID string
	ParentID   int64
	TaskID     int64
	DueDate    time.Time
}

// TickResult summarises one tick.
type TickResult struct {
	Created     []Occurrence
	Deactivated []string
}

// Changed reports whether the tick did anything.
func (r TickResult) Changed() bool {
	return len(r.Created) > 0 || len(r.Deactivated) > 0
}

// Scheduler owns recurring schedules. It is not safe for concurrent use;
// callers serialise access.
type Scheduler struct {
	schedules []*Schedule
	logger    *slog.Logger
	newID     func() string
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator overrides schedule ID generation.
func WithIDGenerator(fn func() string) SchedulerOption {
	return func(s *Scheduler) { s.newID = fn }
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore replaces the schedule set, typically with a loaded snapshot.
func (s *Scheduler) Restore(schedules []*Schedule) {
	s.schedules = make([]*Schedule, 0, len(schedules))
	for _, sc := range schedules {
		if sc != nil {
			s.schedules = append(s.schedules, sc.Clone())
		}
	}
}

// Create builds an active schedule for a recurring parent task. The first
// occurrence is one interval after the parent's due date, or after now when
// the parent has none.
func (s *Scheduler) Create(parent *task.Task, now time.Time) (*Schedule, error) {
	if parent.Recurrence == nil {
		return nil, deskerrors.ErrRecurrenceInvalid(fmt.Sprintf("task %d has no recurrence rule", parent.ID))
	}
	rule := parent.Recurrence

	base := now
	if parent.DueDate != nil {
		base = *parent.DueDate
	}
	next, err := Next(base, rule.Type, rule.Interval, rule.Cron)
	if err != nil {
		return nil, err
	}

	sc := &Schedule{
		ID:           s.newID(),
		ParentTaskID: parent.ID,
		Type:         rule.Type,
		Interval:     rule.Interval,
		Cron:         rule.Cron,
		NextDue:      next,
		IsActive:     true,
		Template:     templateOf(parent),
		CreatedAt:    now,
	}
	if rule.EndDate != nil {
		end := *rule.EndDate
		sc.EndDate = &end
	}
	s.schedules = append(s.schedules, sc)

	s.logger.Debug("recurring schedule created",
		"schedule", sc.ID,
		"parent", parent.ID,
		"type", sc.Type,
		"next_due", sc.NextDue)
	return sc.Clone(), nil
}

// Tick materializes every active schedule that is due at now. Each schedule
// produces at most one instance per tick and then advances one interval from
// its previous due time, so a late tick does not skip ahead. A schedule whose
// end date has passed is deactivated instead.
//
// Failures on one schedule do not stop the others; they are joined into the
// returned error.
func (s *Scheduler) Tick(ctx context.Context, now time.Time, m Materializer) (TickResult, error) {
	var res TickResult
	var errs []error

	for _, sc := range s.schedules {
		if !sc.IsActive {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if sc.EndDate != nil && now.After(*sc.EndDate) {
			sc.IsActive = false
			res.Deactivated = append(res.Deactivated, sc.ID)
			s.logger.Info("recurring schedule ended", "schedule", sc.ID, "parent", sc.ParentTaskID)
			continue
		}
		if now.Before(sc.NextDue) {
			continue
		}

		next, err := Next(sc.NextDue, sc.Type, sc.Interval, sc.Cron)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", sc.ID, err))
			continue
		}

		due := sc.NextDue
		id, err := m.Materialize(ctx, instanceDraft(sc, due, now))
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: materialize: %w", sc.ID, err))
			continue
		}

		sc.CreatedInstances = append(sc.CreatedInstances, id)
		sc.NextDue = next
		res.Created = append(res.Created, Occurrence{
			ScheduleID: sc.ID,
			ParentID:   sc.ParentTaskID,
			TaskID:     id,
			DueDate:    due,
		})
		s.logger.Info("recurring task materialized",
			"schedule", sc.ID,
			"task", id,
			"due", due,
			"next_due", next)
	}

	return res, errors.Join(errs...)
}

// Deactivate stops every schedule owned by parentTaskID and reports whether
// any was active. History is kept.
func (s *Scheduler) Deactivate(parentTaskID int64) bool {
	changed := false
	for _, sc := range s.schedules {
		if sc.ParentTaskID == parentTaskID && sc.IsActive {
			sc.IsActive = false
			changed = true
		}
	}
	return changed
}

// Cancel stops one schedule by ID.
func (s *Scheduler) Cancel(id string) (*Schedule, error) {
	sc := s.find(id)
	if sc == nil {
		return nil, deskerrors.ErrScheduleNotFound(id)
	}
	sc.IsActive = false
	return sc.Clone(), nil
}

// Get returns a copy of the schedule with the given ID.
func (s *Scheduler) Get(id string) (*Schedule, error) {
	sc := s.find(id)
	if sc == nil {
		return nil, deskerrors.ErrScheduleNotFound(id)
	}
	return sc.Clone(), nil
}

// ForParent returns the active schedule of a parent task, or nil.
func (s *Scheduler) ForParent(parentTaskID int64) *Schedule {
	for _, sc := range s.schedules {
		if sc.ParentTaskID == parentTaskID && sc.IsActive {
			return sc.Clone()
		}
	}
	return nil
}

// List returns copies of all schedules in creation order.
func (s *Scheduler) List() []*Schedule {
	out := make([]*Schedule, len(s.schedules))
	for i, sc := range s.schedules {
		out[i] = sc.Clone()
	}
	return out
}

func (s *Scheduler) find(id string) *Schedule {
	for _, sc := range s.schedules {
		if sc.ID == id {
			return sc
		}
	}
	return nil
}

func templateOf(t *task.Task) task.Draft {
	return task.Draft{
		Title:          t.Title,
		Description:    t.Description,
		Priority:       t.Priority,
		AssignedTo:     slices.Clone(t.AssignedTo),
		AssignedBy:     t.AssignedBy,
		EstimatedHours: t.EstimatedHours,
		Tags:           slices.Clone(t.Tags),
		Category:       t.Category,
		Department:     t.Department,
		Attachments:    slices.Clone(t.Attachments),
		Location:       t.Location,
	}
}

func instanceDraft(sc *Schedule, due, now time.Time) task.Draft {
	d := sc.Template
	d.Title = fmt.Sprintf("%s (%s)", d.Title, now.Format(TitleDateLayout))
	d.AssignedTo = slices.Clone(d.AssignedTo)
	d.Tags = slices.Clone(d.Tags)
	d.Attachments = slices.Clone(d.Attachments)
	d.Status = task.StatusPending
	d.DueDate = &due
	d.StartDate = nil
	d.Dependencies = nil
	d.Recurrence = nil
	d.ParentRecurringID = sc.ID
	return d
}
