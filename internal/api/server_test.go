package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/hrdesk/internal/clock"
	"github.com/randalmurphal/hrdesk/internal/engine"
	"github.com/randalmurphal/hrdesk/internal/events"
	"github.com/randalmurphal/hrdesk/internal/metrics"
	"github.com/randalmurphal/hrdesk/internal/storage"
	"github.com/randalmurphal/hrdesk/internal/task"
)

var (
	t0    = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	srv   *Server
	eng   *engine.Engine
	clk   *clock.Fake
	pub   *events.MemoryPublisher
	inbox *events.Inbox
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clk := clock.NewFake(t0)
	pub := events.NewMemoryPublisher()
	t.Cleanup(pub.Close)

	rec, err := metrics.New(context.Background(), "hrdesk-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Shutdown(context.Background()) })

	eng, err := engine.New(nil, clk, storage.NewMemoryBackend(),
		engine.WithPublisher(pub), engine.WithLogger(quiet), engine.WithMetrics(rec))
	require.NoError(t, err)

	inbox := events.NewInbox(0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go inbox.Run(ctx, pub)
	require.Eventually(t, func() bool { return pub.SubscriberCount(events.AllTasks) == 1 },
		time.Second, time.Millisecond, "inbox subscribed")

	cfg.Logger = quiet
	cfg.Publisher = pub
	cfg.Inbox = inbox
	cfg.Metrics = rec
	return &fixture{srv: New(eng, cfg), eng: eng, clk: clk, pub: pub, inbox: inbox}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *fixture) create(t *testing.T, d task.Draft) task.Task {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/tasks", d)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[task.Task](t, w)
}

func TestTaskCRUD(t *testing.T) {
	f := newFixture(t, Config{})

	due := t0.Add(2 * time.Hour)
	created := f.create(t, task.Draft{Title: "Prepare offer letter", AssignedTo: []string{"ana"}, DueDate: &due})
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, task.StatusPending, created.Status)
	assert.Equal(t, task.PriorityMedium, created.Priority)

	w := f.do(t, http.MethodGet, "/api/tasks/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, "Prepare offer letter", got["title"])
	assert.Equal(t, false, got["is_overdue"])
	assert.Equal(t, "in 2h", got["due_in"])

	w = f.do(t, http.MethodPatch, "/api/tasks/1", map[string]any{"priority": "high", "status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[task.Task](t, w)
	assert.Equal(t, task.PriorityHigh, updated.Priority)
	assert.Equal(t, task.StatusInProgress, updated.Status)

	w = f.do(t, http.MethodDelete, "/api/tasks/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/tasks/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	apiErr := decode[APIError](t, w)
	assert.Equal(t, "TASK_NOT_FOUND", apiErr.Code)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, Config{})
	f.create(t, task.Draft{Title: "one"})
	f.create(t, task.Draft{Title: "two", Dependencies: []int64{1}})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad id", http.MethodGet, "/api/tasks/abc", nil, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"empty title", http.MethodPost, "/api/tasks", task.Draft{}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"malformed json", http.MethodPost, "/api/tasks", "{", http.StatusBadRequest, "VALIDATION_FAILED"},
		{"cycle", http.MethodPost, "/api/tasks/1/dependencies", dependencyBody{DependsOn: 2}, http.StatusConflict, "DEPENDENCY_CYCLE"},
		{"missing dependency", http.MethodPost, "/api/tasks/1/dependencies", dependencyBody{DependsOn: 99}, http.StatusNotFound, "TASK_NOT_FOUND"},
		{"bad recurrence", http.MethodPost, "/api/tasks/1/schedule", task.Recurrence{Type: task.RecurCustom}, http.StatusBadRequest, "RECURRENCE_INVALID"},
		{"missing schedule", http.MethodDelete, "/api/schedules/nope", nil, http.StatusNotFound, "SCHEDULE_NOT_FOUND"},
		{"bad filter", http.MethodGet, "/api/tasks?status=finished", nil, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"missing progress", http.MethodPut, "/api/tasks/1/progress", map[string]any{}, http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[APIError](t, w).Code)
		})
	}
}

func TestDependenciesAndChain(t *testing.T) {
	f := newFixture(t, Config{})
	f.create(t, task.Draft{Title: "Background check"})
	f.create(t, task.Draft{Title: "Contract", Dependencies: []int64{1}})
	f.create(t, task.Draft{Title: "Onboarding", Dependencies: []int64{2}})

	w := f.do(t, http.MethodGet, "/api/tasks/3/can-start", nil)
	assert.Equal(t, false, decode[map[string]any](t, w)["can_start"])

	w = f.do(t, http.MethodGet, "/api/tasks/3/chain", nil)
	require.Equal(t, http.StatusOK, w.Code)
	chain := decode[[]chainEntry](t, w)
	require.Len(t, chain, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{chain[0].ID, chain[1].ID, chain[2].ID})
	assert.Equal(t, 2, chain[2].Depth)
	assert.True(t, chain[2].CanStart)

	w = f.do(t, http.MethodGet, "/api/tasks/3/chain?limit=1", nil)
	assert.Len(t, decode[[]chainEntry](t, w), 1)

	w = f.do(t, http.MethodDelete, "/api/tasks/3/dependencies/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[task.Task](t, w).Dependencies)

	w = f.do(t, http.MethodGet, "/api/tasks/3/can-start", nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["can_start"])
}

func TestProgressAndAssignees(t *testing.T) {
	f := newFixture(t, Config{})
	f.create(t, task.Draft{Title: "Payroll review"})

	w := f.do(t, http.MethodPost, "/api/tasks/1/assign", usersBody{Users: []string{"ana", "li"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ana", "li"}, decode[task.Task](t, w).AssignedTo)

	w = f.do(t, http.MethodPost, "/api/tasks/1/unassign", usersBody{Users: []string{"ana"}})
	assert.Equal(t, []string{"li"}, decode[task.Task](t, w).AssignedTo)

	w = f.do(t, http.MethodPost, "/api/tasks/1/assign", usersBody{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/api/tasks/1/progress", map[string]any{"progress": 150})
	require.Equal(t, http.StatusOK, w.Code)
	done := decode[task.Task](t, w)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, task.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	w = f.do(t, http.MethodGet, "/api/users/li/tasks", nil)
	assert.Len(t, decode[[]task.Task](t, w), 1)
}

func TestSearchOverdueUpcomingStats(t *testing.T) {
	f := newFixture(t, Config{UpcomingDays: 3})
	past := t0.Add(-24 * time.Hour)
	soon := t0.Add(48 * time.Hour)
	later := t0.AddDate(0, 0, 10)
	f.create(t, task.Draft{Title: "Late visa renewal", DueDate: &past, Tags: []string{"visa"}})
	f.create(t, task.Draft{Title: "Benefits enrolment", DueDate: &soon, Priority: task.PriorityCritical})
	f.create(t, task.Draft{Title: "Annual review prep", DueDate: &later, Tags: []string{"Visa", "review"}})

	w := f.do(t, http.MethodGet, "/api/tasks?q=visa", nil)
	assert.Len(t, decode[[]task.Task](t, w), 2)

	w = f.do(t, http.MethodGet, "/api/tasks?tag=visa&tag=review", nil)
	res := decode[[]task.Task](t, w)
	require.Len(t, res, 1)
	assert.Equal(t, int64(3), res[0].ID)

	w = f.do(t, http.MethodGet, "/api/tasks?sort=priority", nil)
	assert.Equal(t, int64(2), decode[[]task.Task](t, w)[0].ID)

	w = f.do(t, http.MethodGet, "/api/tasks?due_after=2025-04-02&due_before=2025-04-30", nil)
	assert.Len(t, decode[[]task.Task](t, w), 2)

	w = f.do(t, http.MethodGet, "/api/overdue", nil)
	overdue := decode[[]map[string]any](t, w)
	require.Len(t, overdue, 1)
	assert.Equal(t, true, overdue[0]["is_overdue"])

	w = f.do(t, http.MethodGet, "/api/upcoming", nil)
	assert.Len(t, decode[[]task.Task](t, w), 1)
	w = f.do(t, http.MethodGet, "/api/upcoming?days=30", nil)
	assert.Len(t, decode[[]task.Task](t, w), 2)

	w = f.do(t, http.MethodGet, "/api/stats", nil)
	stats := decode[engine.Stats](t, w)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Overdue)
}

func TestScheduleEndpointsAndTick(t *testing.T) {
	f := newFixture(t, Config{})
	due := t0
	f.create(t, task.Draft{Title: "Check visa expiries", DueDate: &due})

	w := f.do(t, http.MethodPost, "/api/tasks/1/schedule", task.Recurrence{Type: task.RecurDaily, Interval: 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sc := decode[map[string]any](t, w)
	sid := sc["id"].(string)

	f.clk.Advance(24 * time.Hour)
	w = f.do(t, http.MethodPost, "/api/tick", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["changed"])

	w = f.do(t, http.MethodGet, "/api/tasks/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Check visa expiries (2025-04-02)", decode[task.Task](t, w).Title)

	w = f.do(t, http.MethodGet, "/api/schedules/"+sid, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/schedules/"+sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["is_active"])

	w = f.do(t, http.MethodGet, "/api/schedules?active=true", nil)
	assert.Empty(t, decode[[]map[string]any](t, w))
	w = f.do(t, http.MethodGet, "/api/schedules", nil)
	assert.Len(t, decode[[]map[string]any](t, w), 1)
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	f.create(t, task.Draft{Title: "I-9 verification", Priority: task.PriorityHigh, AssignedTo: []string{"ana", "li"}})
	f.create(t, task.Draft{Title: "Exit interview", Status: task.StatusOnHold})

	w := f.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "hrdesk-20250401.csv")
	csvBody := w.Body.String()

	g := newFixture(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	g.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	imported := g.eng.ListTasks()
	require.Len(t, imported, 2)
	assert.Equal(t, "I-9 verification", imported[0].Title)
	assert.Equal(t, task.PriorityHigh, imported[0].Priority)
	assert.Equal(t, []string{"ana", "li"}, imported[0].AssignedTo)
	assert.Equal(t, task.StatusOnHold, imported[1].Status)

	req = httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("title,status\nx,done\n"))
	rec = httptest.NewRecorder()
	g.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, g.eng.ListTasks(), 2)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t, Config{})
	f.create(t, task.Draft{Title: "Relocation package", AssignedTo: []string{"ana"}})

	type inboxBody struct {
		Notifications []events.Notification `json:"notifications"`
		Unread        int                   `json:"unread"`
	}
	var list inboxBody
	require.Eventually(t, func() bool {
		list = decode[inboxBody](t, f.do(t, http.MethodGet, "/api/notifications?user=ana", nil))
		return len(list.Notifications) == 2
	}, 2*time.Second, 10*time.Millisecond, "created broadcast and assigned notification")
	assert.Equal(t, 2, list.Unread)

	var assigned events.Notification
	for _, n := range list.Notifications {
		if n.Type == events.NotifyAssigned {
			assigned = n
		}
	}
	require.NotEmpty(t, assigned.ID)

	w := f.do(t, http.MethodPost, "/api/notifications/"+assigned.ID+"/read?user=ana", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, f.inbox.Unread("ana"))

	w = f.do(t, http.MethodPost, "/api/notifications/missing/read?user=ana", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/notifications/read-all?user=ana", nil)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["marked"])
	assert.Zero(t, f.inbox.Unread("ana"))
}

func TestMetricsAndHealth(t *testing.T) {
	f := newFixture(t, Config{})
	f.create(t, task.Draft{Title: "Policy refresh"})

	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hrdesk_task_operations_total")
	assert.Contains(t, w.Body.String(), "hrdesk_tasks")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 1, RateBurst: 2})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = f.do(t, http.MethodGet, "/api/stats", nil).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Health and metrics are not limited.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestClientLimiterEvictsIdleVisitors(t *testing.T) {
	now := t0
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))

	now = now.Add(visitorTTL + time.Minute)
	assert.True(t, l.allow("10.0.0.2"))
	assert.NotContains(t, l.visitors, "10.0.0.1")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
