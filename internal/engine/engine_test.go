package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/hrdesk/internal/clock"
	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/events"
	"github.com/randalmurphal/hrdesk/internal/storage"
	"github.com/randalmurphal/hrdesk/internal/task"
)

var t0 = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

// recorder is a synchronous publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}
func (r *recorder) Subscribe(int64) <-chan events.Event { return nil }
func (r *recorder) Unsubscribe(int64, <-chan events.Event) {}
func (r *recorder) Close()                                 {}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) storeChanges() []events.StoreChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.StoreChange
	for _, ev := range r.events {
		if ev.Type == events.EventStoreChanged {
			out = append(out, ev.Data.(events.StoreChange))
		}
	}
	return out
}

func (r *recorder) notifications(typ events.NotificationType) []events.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Notification
	for _, ev := range r.events {
		if n, ok := ev.Data.(events.Notification); ok && n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	eng     *Engine
	clk     *clock.Fake
	backend *storage.FlakyBackend
	events  *recorder
}

func newFixture(t *testing.T, initial ...*task.Task) *fixture {
	t.Helper()
	f := &fixture{
		clk:     clock.NewFake(t0),
		backend: storage.NewFlakyBackend(),
		events:  &recorder{},
	}
	n := 0
	eng, err := New(initial, f.clk, f.backend,
		WithPublisher(f.events),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	require.NoError(t, err)
	f.eng = eng
	return f
}

func (f *fixture) create(t *testing.T, d task.Draft) *task.Task {
	t.Helper()
	created, err := f.eng.CreateTask(context.Background(), d)
	require.NoError(t, err)
	return created
}

// assertSymmetric checks that dependencies and dependents mirror each other.
func assertSymmetric(t *testing.T, eng *Engine) {
	t.Helper()
	all := eng.ListTasks()
	byID := make(map[int64]*task.Task, len(all))
	for _, tk := range all {
		byID[tk.ID] = tk
	}
	for _, a := range all {
		for _, dep := range a.Dependencies {
			b, ok := byID[dep]
			require.True(t, ok, "task %d depends on missing %d", a.ID, dep)
			assert.Contains(t, b.Dependents, a.ID, "task %d missing dependent %d", b.ID, a.ID)
		}
		for _, d := range a.Dependents {
			b, ok := byID[d]
			require.True(t, ok, "task %d has missing dependent %d", a.ID, d)
			assert.Contains(t, b.Dependencies, a.ID, "task %d missing dependency %d", b.ID, a.ID)
		}
	}
}

func TestCreateTask_Defaults(t *testing.T) {
	f := newFixture(t)

	got := f.create(t, task.Draft{Title: "Collect I-9 forms", AssignedTo: []string{"ana", "ana", "li"}})

	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, task.PriorityMedium, got.Priority)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, t0, got.CreatedAt)
	assert.Equal(t, t0, got.UpdatedAt)
	assert.Equal(t, []string{"ana", "li"}, got.AssignedTo)

	assert.Len(t, f.events.notifications(events.NotifyCreated), 1)
	assigned := f.events.notifications(events.NotifyAssigned)
	require.Len(t, assigned, 2)
	assert.Equal(t, "ana", assigned[0].TargetUser)
	assert.Equal(t, "medium", assigned[0].Priority)
	assert.False(t, assigned[0].Read)

	changes := f.events.storeChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, "create", changes[0].Op)
	assert.Equal(t, 1, f.backend.Saves())
}

func TestCreateTask_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.CreateTask(context.Background(), task.Draft{Title: "  "})
	assert.True(t, errors.Is(err, deskerrors.ErrInvalid))

	_, err = f.eng.CreateTask(context.Background(), task.Draft{Title: "x", Priority: "urgent"})
	assert.True(t, errors.Is(err, deskerrors.ErrInvalid))

	_, err = f.eng.CreateTask(context.Background(), task.Draft{
		Title:      "x",
		Recurrence: &task.Recurrence{Type: task.RecurCustom},
	})
	assert.True(t, errors.Is(err, deskerrors.ErrRecurrence))

	assert.Empty(t, f.eng.ListTasks())
	assert.Empty(t, f.events.storeChanges())
}

func TestCreateTask_UnknownDependencyRollsBack(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, task.Draft{Title: "A"})

	_, err := f.eng.CreateTask(context.Background(), task.Draft{Title: "B", Dependencies: []int64{a.ID, 42}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))

	// No half-created task and no dangling dependent on A.
	assert.Len(t, f.eng.ListTasks(), 1)
	got, _ := f.eng.GetTask(a.ID)
	assert.Empty(t, got.Dependents)

	// The ID was not consumed.
	c := f.create(t, task.Draft{Title: "C"})
	assert.Equal(t, int64(2), c.ID)
}

func TestCreateTask_ReportsEveryMissingDependency(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, task.Draft{Title: "A"})
	f.events.reset()

	_, err := f.eng.CreateTask(context.Background(), task.Draft{Title: "B", Dependencies: []int64{42, a.ID, 43}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))
	assert.Contains(t, err.Error(), "tasks 42, 43 not found")
	assert.Len(t, f.eng.ListTasks(), 1)
	assert.Empty(t, f.events.storeChanges())
}

func TestUpdateTask_BadDependencyListLeavesEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, task.Draft{Title: "A"})
	b := f.create(t, task.Draft{Title: "B", Dependencies: []int64{a.ID}})

	_, err := f.eng.UpdateTask(ctx, b.ID, task.Patch{Dependencies: &[]int64{b.ID}})
	assert.True(t, errors.Is(err, deskerrors.ErrCycle))

	_, err = f.eng.UpdateTask(ctx, b.ID, task.Patch{Dependencies: &[]int64{7, 8}})
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))

	got, _ := f.eng.GetTask(b.ID)
	assert.Equal(t, []int64{a.ID}, got.Dependencies)
	assertSymmetric(t, f.eng)
}

func TestCreateTask_CustomCronInvalidRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.CreateTask(context.Background(), task.Draft{
		Title:      "Quarterly review",
		Recurrence: &task.Recurrence{Type: task.RecurCustom, Cron: "whenever"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, deskerrors.ErrRecurrence))
	assert.Empty(t, f.eng.ListTasks())
	assert.Empty(t, f.eng.Schedules())
}

func TestIDsAreNeverReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, task.Draft{Title: "one"})
	two := f.create(t, task.Draft{Title: "two"})
	_, err := f.eng.DeleteTask(ctx, two.ID)
	require.NoError(t, err)

	three := f.create(t, task.Draft{Title: "three"})
	assert.Equal(t, int64(3), three.ID)

	// The counter survives a reload.
	reopened, err := Open(ctx, f.clk, f.backend)
	require.NoError(t, err)
	four, err := reopened.CreateTask(ctx, task.Draft{Title: "four"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), four.ID)
}

// Scenario A.
func TestCanStartFollowsCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t1 := f.create(t, task.Draft{Title: "Background check"})
	ok, err := f.eng.CanStart(t1.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	t2 := f.create(t, task.Draft{Title: "Send offer", Dependencies: []int64{t1.ID}, AssignedTo: []string{"hr"}})
	ok, _ = f.eng.CanStart(t2.ID)
	assert.False(t, ok)

	f.events.reset()
	_, err = f.eng.UpdateTaskProgress(ctx, t1.ID, 100, nil)
	require.NoError(t, err)

	ok, _ = f.eng.CanStart(t2.ID)
	assert.True(t, ok)

	unblocked := f.events.notifications(events.NotifyUnblocked)
	require.Len(t, unblocked, 1)
	assert.Equal(t, t2.ID, unblocked[0].TaskID)
	assert.Equal(t, "hr", unblocked[0].TargetUser)

	_, err = f.eng.CanStart(99)
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))
}

// Scenario B.
func TestAddDependency_CycleLeavesGraphUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t1 := f.create(t, task.Draft{Title: "T1"})
	t2 := f.create(t, task.Draft{Title: "T2"})

	_, err := f.eng.AddDependency(ctx, t1.ID, t2.ID)
	require.NoError(t, err)
	before := f.eng.ListTasks()
	saves := f.backend.Saves()

	_, err = f.eng.AddDependency(ctx, t2.ID, t1.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, deskerrors.ErrCycle))
	assert.Contains(t, err.Error(), "2 -> 1 -> 2")

	assert.Equal(t, before, f.eng.ListTasks())
	assert.Equal(t, saves, f.backend.Saves())
	assertSymmetric(t, f.eng)
}

func TestAddDependency_SelfAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, task.Draft{Title: "A"})

	_, err := f.eng.AddDependency(ctx, a.ID, a.ID)
	assert.True(t, errors.Is(err, deskerrors.ErrCycle))

	_, err = f.eng.AddDependency(ctx, a.ID, 9)
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))
	_, err = f.eng.AddDependency(ctx, 9, a.ID)
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))
}

func TestDependencyEdgesAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, task.Draft{Title: "A"})
	b := f.create(t, task.Draft{Title: "B"})

	_, err := f.eng.AddDependency(ctx, b.ID, a.ID)
	require.NoError(t, err)
	f.events.reset()

	got, err := f.eng.AddDependency(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, got.Dependencies)
	assert.Empty(t, f.events.storeChanges(), "no-op add publishes nothing")

	_, err = f.eng.RemoveDependency(ctx, b.ID, a.ID)
	require.NoError(t, err)
	got, err = f.eng.RemoveDependency(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Dependencies)

	aa, _ := f.eng.GetTask(a.ID)
	assert.Empty(t, aa.Dependents)
	assert.Len(t, f.events.storeChanges(), 1)
}

func TestDiamondIsNotACycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, task.Draft{Title: "root"})
	left := f.create(t, task.Draft{Title: "left", Dependencies: []int64{root.ID}})
	right := f.create(t, task.Draft{Title: "right", Dependencies: []int64{root.ID}})
	top := f.create(t, task.Draft{Title: "top", Dependencies: []int64{left.ID, right.ID}})

	_, err := f.eng.AddDependency(ctx, top.ID, root.ID)
	require.NoError(t, err)

	_, err = f.eng.AddDependency(ctx, root.ID, top.ID)
	assert.True(t, errors.Is(err, deskerrors.ErrCycle))
	assertSymmetric(t, f.eng)
}

// Scenario D.
func TestDeleteTask_StripsEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t1 := f.create(t, task.Draft{Title: "T1"})
	t3 := f.create(t, task.Draft{Title: "T3"})
	t2 := f.create(t, task.Draft{
		Title:        "T2",
		Description:  "keeps its fields",
		Dependencies: []int64{t3.ID, t1.ID},
		Tags:         []string{"payroll"},
	})

	f.events.reset()
	removed, err := f.eng.DeleteTask(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, t1.ID, removed.ID)

	got, err := f.eng.GetTask(t2.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{t3.ID}, got.Dependencies)
	assert.Equal(t, "keeps its fields", got.Description)
	assert.Equal(t, []string{"payroll"}, got.Tags)
	assertSymmetric(t, f.eng)

	changes := f.events.storeChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, t1.ID, changes[0].TaskIDs[0])

	_, err = f.eng.DeleteTask(ctx, t1.ID)
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))
}

func TestDeleteRecurringParentDeactivatesSchedule(t *testing.T) {
	f := newFixture(t)
	due := t0.Add(time.Hour)
	parent := f.create(t, task.Draft{
		Title:      "Weekly timesheets",
		DueDate:    &due,
		Recurrence: &task.Recurrence{Type: task.RecurWeekly, Interval: 1},
	})

	scheds := f.eng.Schedules()
	require.Len(t, scheds, 1)
	assert.True(t, scheds[0].IsActive)

	_, err := f.eng.DeleteTask(context.Background(), parent.ID)
	require.NoError(t, err)

	scheds = f.eng.Schedules()
	require.Len(t, scheds, 1, "history is kept")
	assert.False(t, scheds[0].IsActive)
}

func TestUpdateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orig := f.create(t, task.Draft{Title: "Draft policy", AssignedTo: []string{"ana"}})

	f.clk.Advance(time.Hour)
	f.events.reset()

	title := "Publish policy"
	users := []string{"ana", "li", "sam"}
	got, err := f.eng.UpdateTask(ctx, orig.ID, task.Patch{Title: &title, AssignedTo: &users})
	require.NoError(t, err)
	assert.Equal(t, "Publish policy", got.Title)
	assert.Equal(t, t0.Add(time.Hour), got.UpdatedAt)
	assert.Equal(t, t0, got.CreatedAt)

	assigned := f.events.notifications(events.NotifyAssigned)
	require.Len(t, assigned, 2)
	assert.Equal(t, "li", assigned[0].TargetUser)
	assert.Equal(t, "sam", assigned[1].TargetUser)
	assert.Len(t, f.events.storeChanges(), 1)

	_, err = f.eng.UpdateTask(ctx, 77, task.Patch{Title: &title})
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))

	empty := ""
	_, err = f.eng.UpdateTask(ctx, orig.ID, task.Patch{Title: &empty})
	assert.True(t, errors.Is(err, deskerrors.ErrInvalid))
}

func TestUpdateTask_StatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t, task.Draft{Title: "Exit interview", AssignedBy: "lead"})

	f.events.reset()
	onHold := task.StatusOnHold
	got, err := f.eng.UpdateTask(ctx, tk.ID, task.Patch{Status: &onHold})
	require.NoError(t, err)
	assert.Equal(t, task.StatusOnHold, got.Status)
	assert.Len(t, f.events.notifications(events.NotifyStatusChanged), 1)

	done := task.StatusCompleted
	got, err = f.eng.UpdateTask(ctx, tk.ID, task.Patch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.CompletedAt)
	completed := f.events.notifications(events.NotifyCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "lead", completed[0].TargetUser)

	reopen := task.StatusInProgress
	got, err = f.eng.UpdateTask(ctx, tk.ID, task.Patch{Status: &reopen})
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)
}

func TestUpdateTask_FullProgressCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	full := 100
	pending := task.StatusPending
	tk := f.create(t, task.Draft{Title: "Return badge"})
	got, err := f.eng.UpdateTask(ctx, tk.ID, task.Patch{Progress: &full, Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status, "progress 100 wins over the requested status")
	require.NotNil(t, got.CompletedAt)
	assert.Len(t, f.events.notifications(events.NotifyCompleted), 1)

	tk = f.create(t, task.Draft{Title: "Archive file"})
	got, err = f.eng.UpdateTask(ctx, tk.ID, task.Patch{Progress: &full})
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)

	// reopening without a progress value keeps the recorded 100
	reopen := task.StatusInProgress
	got, err = f.eng.UpdateTask(ctx, tk.ID, task.Patch{Status: &reopen})
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Nil(t, got.CompletedAt)
}

func TestUpdateTask_ReplaceDependencies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, task.Draft{Title: "A"})
	b := f.create(t, task.Draft{Title: "B"})
	c := f.create(t, task.Draft{Title: "C", Dependencies: []int64{a.ID}})

	deps := []int64{b.ID}
	got, err := f.eng.UpdateTask(ctx, c.ID, task.Patch{Dependencies: &deps})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, got.Dependencies)

	aa, _ := f.eng.GetTask(a.ID)
	assert.Empty(t, aa.Dependents)
	assertSymmetric(t, f.eng)

	// A replacement that closes a cycle restores the previous edges.
	before := f.eng.ListTasks()
	cycle := []int64{a.ID, c.ID}
	_, err = f.eng.UpdateTask(ctx, b.ID, task.Patch{Dependencies: &cycle})
	assert.True(t, errors.Is(err, deskerrors.ErrCycle))
	assert.Equal(t, before, f.eng.ListTasks())
}

func TestUpdateTaskProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		start      task.Status
		progress   int
		wantStatus task.Status
		wantValue  int
	}{
		{"pending starts", task.StatusPending, 30, task.StatusInProgress, 30},
		{"zero keeps pending", task.StatusPending, 0, task.StatusPending, 0},
		{"clamped high completes", task.StatusInProgress, 150, task.StatusCompleted, 100},
		{"clamped low", task.StatusOnHold, -5, task.StatusOnHold, 0},
		{"on hold stays on hold", task.StatusOnHold, 40, task.StatusOnHold, 40},
		{"cancelled can complete", task.StatusCancelled, 100, task.StatusCompleted, 100},
		{"overdue completes", task.StatusOverdue, 100, task.StatusCompleted, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := f.create(t, task.Draft{Title: tt.name, Status: tt.start})
			hours := 2.5
			got, err := f.eng.UpdateTaskProgress(ctx, tk.ID, tt.progress, &hours)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantValue, got.Progress)
			assert.Equal(t, 2.5, got.ActualHours)
			if tt.wantStatus == task.StatusCompleted {
				require.NotNil(t, got.CompletedAt)
				assert.Equal(t, t0, *got.CompletedAt)
			}
		})
	}

	_, err := f.eng.UpdateTaskProgress(ctx, 404, 10, nil)
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))
}

func TestAssignAndUnassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t, task.Draft{Title: "Benefits enrolment", AssignedTo: []string{"ana"}})

	f.events.reset()
	got, err := f.eng.AssignTask(ctx, tk.ID, "li", "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "li"}, got.AssignedTo)
	assert.Len(t, f.events.notifications(events.NotifyAssigned), 1)

	got, err = f.eng.UnassignTask(ctx, tk.ID, "ana", "nobody")
	require.NoError(t, err)
	assert.Equal(t, []string{"li"}, got.AssignedTo)

	assert.Len(t, f.eng.TasksByUser("li"), 1)
	assert.Empty(t, f.eng.TasksByUser("ana"))

	_, err = f.eng.AssignTask(ctx, 50, "x")
	assert.True(t, errors.Is(err, deskerrors.ErrNotFound))
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.SetFailing(true)
	got, err := f.eng.CreateTask(ctx, task.Draft{Title: "Payroll export"})
	require.NoError(t, err, "save errors do not reach the caller")

	stored, err := f.eng.GetTask(got.ID)
	require.NoError(t, err)
	assert.Equal(t, "Payroll export", stored.Title)
	assert.Equal(t, 1, f.backend.Failures())
	assert.Len(t, f.events.storeChanges(), 1)

	assert.Error(t, f.eng.Save(ctx))

	f.backend.SetFailing(false)
	require.NoError(t, f.eng.Save(ctx))
	snap, err := f.backend.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Tasks, 1)
}

func TestReturnedTasksAreCopies(t *testing.T) {
	f := newFixture(t)
	got := f.create(t, task.Draft{Title: "Original", Tags: []string{"a"}})

	got.Title = "mutated"
	got.Tags[0] = "b"

	stored, _ := f.eng.GetTask(got.ID)
	assert.Equal(t, "Original", stored.Title)
	assert.Equal(t, []string{"a"}, stored.Tags)
}

func TestNew_RebuildsEdges(t *testing.T) {
	a := &task.Task{ID: 1, Title: "A", Status: task.StatusCompleted, Dependents: []int64{7}}
	b := &task.Task{ID: 2, Title: "B", Dependencies: []int64{1, 1, 99, 2}}

	f := newFixture(t, a, b)

	got, _ := f.eng.GetTask(2)
	assert.Equal(t, []int64{1}, got.Dependencies)
	got, _ = f.eng.GetTask(1)
	assert.Equal(t, []int64{2}, got.Dependents)
	assertSymmetric(t, f.eng)

	// Inputs are copied.
	a.Title = "changed"
	got, _ = f.eng.GetTask(1)
	assert.Equal(t, "A", got.Title)

	next := f.create(t, task.Draft{Title: "C"})
	assert.Equal(t, int64(3), next.ID)
}

func TestNew_RejectsBadIDs(t *testing.T) {
	_, err := New([]*task.Task{{ID: 1, Title: "a"}, {ID: 1, Title: "b"}}, nil, nil)
	assert.True(t, errors.Is(err, deskerrors.ErrInvalid))

	_, err = New([]*task.Task{{ID: 0, Title: "a"}}, nil, nil)
	assert.True(t, errors.Is(err, deskerrors.ErrInvalid))
}

func TestOpen_SchemaTooNew(t *testing.T) {
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.Save(context.Background(), &storage.Snapshot{Version: storage.SchemaVersion + 1}))

	_, err := Open(context.Background(), nil, backend)
	assert.True(t, errors.Is(err, deskerrors.ErrSchemaUnsupported))
}

func TestSymmetryUnderRandomEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		f.create(t, task.Draft{Title: fmt.Sprintf("t%d", i)})
	}

	// A fixed pseudo-random walk of edge edits; cycles are expected to be
	// rejected along the way.
	seed := int64(7)
	for i := 0; i < 200; i++ {
		seed = (seed*1103515245 + 12345) % 2147483648
		from := seed%8 + 1
		to := (seed/8)%8 + 1
		switch {
		case seed%5 == 0:
			_, err := f.eng.RemoveDependency(ctx, from, to)
			if err != nil {
				assert.True(t, errors.Is(err, deskerrors.ErrNotFound), err.Error())
			}
		case seed%11 == 0:
			_, err := f.eng.DeleteTask(ctx, from)
			if err == nil {
				_, err = f.eng.CreateTask(ctx, task.Draft{Title: "replacement"})
				require.NoError(t, err)
			}
		default:
			_, err := f.eng.AddDependency(ctx, from, to)
			if err != nil {
				assert.True(t, errors.Is(err, deskerrors.ErrCycle) || errors.Is(err, deskerrors.ErrNotFound), err.Error())
			}
		}
		assertSymmetric(t, f.eng)
	}

	// No task reaches itself through its dependencies.
	for _, tk := range f.eng.ListTasks() {
		chain, err := f.eng.DependencyChain(tk.ID)
		require.NoError(t, err)
		for node := range chain.All() {
			if node.Depth > 0 {
				assert.NotEqual(t, tk.ID, node.Task.ID)
			}
		}
	}
}
