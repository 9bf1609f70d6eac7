// Package engine composes the task store, dependency graph and recurrence
// scheduler behind a single serialised API.
//
// Every command validates its input, mutates the in-memory store, then saves
// a snapshot through the storage backend and publishes one store_changed
// event plus a notification per business event. The in-memory store is
// authoritative: a failed save is logged and counted but never returned and
// never rolled back.
package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/hrdesk/internal/clock"
	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/events"
	"github.com/randalmurphal/hrdesk/internal/metrics"
	"github.com/randalmurphal/hrdesk/internal/recurrence"
	"github.com/randalmurphal/hrdesk/internal/storage"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// DefaultDueSoon is how far ahead of a due date the due reminder is sent.
const DefaultDueSoon = 24 * time.Hour

// Engine owns the task store and its recurring schedules.
type Engine struct {
	// mu serialises every command and query.
	mu sync.Mutex
	// tickMu keeps ticks from overlapping. It is always taken before mu.
	tickMu sync.Mutex

	tasks  map[int64]*task.Task
	lastID int64
	sched  *recurrence.Scheduler

	// reminded remembers the due date each due reminder was sent for, so a
	// task is reminded once per due date.
	reminded map[int64]time.Time

	clock   clock.Clock
	backend storage.Backend
	events  *events.PublishHelper
	logger  *slog.Logger
	metrics *metrics.Recorder
	dueSoon time.Duration
	newID   func() string

	schedules []*recurrence.Schedule
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets the notification and store-change sink.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.events = events.NewPublishHelper(p) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSchedules restores recurring schedules, typically from a snapshot.
func WithSchedules(s []*recurrence.Schedule) Option {
	return func(e *Engine) { e.schedules = s }
}

// WithMetrics records operation, tick and persistence metrics.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithDueSoonWindow sets how far ahead due reminders are sent. Zero disables
// them.
func WithDueSoonWindow(d time.Duration) Option {
	return func(e *Engine) { e.dueSoon = d }
}

// WithIDGenerator overrides notification and schedule ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func withLastID(id int64) Option {
	return func(e *Engine) { e.lastID = max(e.lastID, id) }
}

// New creates an engine over initial. The tasks are copied, and dependents
// lists are rebuilt from dependencies so the two stay symmetric; references
// to tasks that do not exist are dropped. A nil clock means the wall clock;
// a nil backend keeps state in memory only.
func New(initial []*task.Task, clk clock.Clock, backend storage.Backend, opts ...Option) (*Engine, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}

	e := &Engine{
		tasks:    make(map[int64]*task.Task, len(initial)),
		reminded: make(map[int64]time.Time),
		clock:    clk,
		backend:  backend,
		logger:   slog.Default(),
		dueSoon:  DefaultDueSoon,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, t := range initial {
		if t == nil {
			continue
		}
		if t.ID <= 0 {
			return nil, deskerrors.ErrValidation(fmt.Errorf("task id %d: ids must be positive", t.ID))
		}
		if _, dup := e.tasks[t.ID]; dup {
			return nil, deskerrors.ErrValidation(fmt.Errorf("duplicate task id %d", t.ID))
		}
		e.tasks[t.ID] = t.Clone()
		e.lastID = max(e.lastID, t.ID)
	}
	e.rebuildEdges()

	e.sched = recurrence.NewScheduler(
		recurrence.WithLogger(e.logger),
		recurrence.WithIDGenerator(e.newID),
	)
	e.sched.Restore(e.schedules)
	e.schedules = nil

	e.metrics.ObserveStatusCounts(e.statusCounts)
	return e, nil
}

// Open loads the backend's snapshot and builds an engine from it.
func Open(ctx context.Context, clk clock.Clock, backend storage.Backend, opts ...Option) (*Engine, error) {
	snap, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	opts = append([]Option{WithSchedules(snap.Schedules), withLastID(snap.LastID)}, opts...)
	return New(snap.Tasks, clk, backend, opts...)
}

// rebuildEdges derives every dependents list from the dependencies lists.
func (e *Engine) rebuildEdges() {
	for _, t := range e.tasks {
		t.Dependents = nil
	}
	for _, id := range e.sortedIDs() {
		t := e.tasks[id]
		deps := t.Dependencies[:0:0]
		for _, depID := range t.Dependencies {
			dep := e.tasks[depID]
			if dep == nil || depID == id || slices.Contains(deps, depID) {
				e.logger.Warn("dropping invalid dependency", "task", id, "depends_on", depID)
				continue
			}
			deps = append(deps, depID)
			dep.Dependents = append(dep.Dependents, id)
		}
		if len(deps) == 0 {
			deps = nil
		}
		t.Dependencies = deps
	}
}

func (e *Engine) lookup(id int64) *task.Task {
	return e.tasks[id]
}

func (e *Engine) sortedIDs() []int64 {
	return slices.Sorted(maps.Keys(e.tasks))
}

// sorted returns clones of the tasks matching keep, ordered by ID.
func (e *Engine) sorted(keep func(*task.Task) bool) []*task.Task {
	var out []*task.Task
	for _, id := range e.sortedIDs() {
		if t := e.tasks[id]; keep == nil || keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// nextID returns the next unused task ID. IDs of deleted tasks are never
// handed out again.
func (e *Engine) nextID() int64 {
	e.lastID++
	return e.lastID
}

// snapshot captures the current state for the backend.
func (e *Engine) snapshot(now time.Time) *storage.Snapshot {
	s := storage.NewSnapshot()
	s.SavedAt = now
	s.LastID = e.lastID
	s.Tasks = e.sorted(nil)
	s.Schedules = e.sched.List()
	return s
}

// persist saves the current state. Errors stay at this boundary.
func (e *Engine) persist(ctx context.Context, op string) {
	if err := e.backend.Save(ctx, e.snapshot(e.clock.Now())); err != nil {
		e.logger.Error("failed to save snapshot", "op", op, "error", err)
		e.metrics.PersistenceFailure(ctx, "save")
	}
}

// Save writes the current state to the backend and returns any error.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.backend.Save(ctx, e.snapshot(e.clock.Now())); err != nil {
		e.metrics.PersistenceFailure(ctx, "save")
		return err
	}
	return nil
}

func (e *Engine) statusCounts() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	counts := make(map[string]int64, len(task.ValidStatuses()))
	for _, s := range task.ValidStatuses() {
		counts[string(s)] = 0
	}
	for _, t := range e.tasks {
		counts[string(t.Status)]++
	}
	return counts
}

// change tracks one mutation: the original state of every task it touches,
// so a failure can be undone, and the notifications it will publish.
type change struct {
	e       *Engine
	op      string
	now     time.Time
	lastID  int64
	saved   map[int64]*task.Task
	order   []int64
	pending []events.Notification
}

func (e *Engine) begin(op string) *change {
	return &change{
		e:      e,
		op:     op,
		now:    e.clock.Now(),
		lastID: e.lastID,
		saved:  make(map[int64]*task.Task),
	}
}

// touch records the task's current state before the first modification and
// returns the live task. It returns nil for unknown IDs.
func (c *change) touch(id int64) *task.Task {
	t := c.e.tasks[id]
	if t == nil {
		return nil
	}
	c.remember(id, t.Clone())
	return t
}

// insert adds a new task to the store.
func (c *change) insert(t *task.Task) {
	c.remember(t.ID, nil)
	c.e.tasks[t.ID] = t
}

func (c *change) remember(id int64, orig *task.Task) {
	if _, seen := c.saved[id]; seen {
		return
	}
	c.saved[id] = orig
	c.order = append(c.order, id)
}

func (c *change) notify(t *task.Task, typ events.NotificationType, target, msg string) {
	c.pending = append(c.pending, events.Notification{
		ID:         c.e.newID(),
		TaskID:     t.ID,
		Type:       typ,
		TargetUser: target,
		Message:    msg,
		CreatedAt:  c.now,
		Priority:   string(t.Priority),
	})
}

// notifyAssignees sends one notification per assignee, or a broadcast when
// the task has none.
func (c *change) notifyAssignees(t *task.Task, typ events.NotificationType, msg string) {
	if len(t.AssignedTo) == 0 {
		c.notify(t, typ, "", msg)
		return
	}
	for _, user := range t.AssignedTo {
		c.notify(t, typ, user, msg)
	}
}

// rollback restores every touched task and the ID counter.
func (c *change) rollback() {
	for id, orig := range c.saved {
		if orig == nil {
			delete(c.e.tasks, id)
			continue
		}
		c.e.tasks[id] = orig
	}
	c.e.lastID = c.lastID
	c.pending = nil
}

// ids lists touched tasks in the order they were first touched, skipping
// ones that no longer exist.
func (c *change) ids() []int64 {
	out := make([]int64, 0, len(c.order))
	for _, id := range c.order {
		if _, ok := c.e.tasks[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// commit persists the mutation and publishes its events. removed lists
// deleted task IDs, reported first in the store_changed event.
func (c *change) commit(ctx context.Context, removed ...int64) {
	c.e.persist(ctx, c.op)
	for _, n := range c.pending {
		c.e.events.Notify(n)
	}
	ids := append(slices.Clone(removed), c.ids()...)
	c.e.events.StoreChanged(c.op, c.now, ids...)
}

// finish records the operation metric and passes err through.
func (e *Engine) finish(ctx context.Context, op string, err error) error {
	e.metrics.TaskOp(ctx, op, err)
	if err != nil {
		e.logger.Debug("task operation failed", "op", op, "error", err)
	}
	return err
}

func byPriority(a, b *task.Task) int {
	if c := cmp.Compare(b.Priority.Severity(), a.Priority.Severity()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func byDue(a, b *task.Task) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return cmp.Compare(a.ID, b.ID)
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	}
	if c := a.DueDate.Compare(*b.DueDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
