package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/hrdesk/internal/engine"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// taskResponse decorates a task with fields derived at read time.
type taskResponse struct {
	*task.Task
	IsOverdue bool   `json:"is_overdue"`
	DueIn     string `json:"due_in,omitempty"`
}

func (s *Server) present(t *task.Task, now time.Time) taskResponse {
	r := taskResponse{Task: t, IsOverdue: t.IsOverdue(now)}
	if t.DueDate != nil {
		r.DueIn = task.FormatDue(t.DueDate, now)
	}
	return r
}

func (s *Server) presentAll(tasks []*task.Task) []taskResponse {
	now := s.engine.Now()
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = s.present(t, now)
	}
	return out
}

func taskID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, fmt.Sprintf("invalid %s %q", param, c.Param(param)), nil)
		return 0, false
	}
	return id, true
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

// filterFromQuery reads search parameters. Repeated tag parameters must all
// match.
func filterFromQuery(c *gin.Context) (string, engine.Filter, error) {
	f := engine.Filter{
		Status:     task.Status(c.Query("status")),
		Priority:   task.Priority(c.Query("priority")),
		Assignee:   c.Query("assignee"),
		Department: c.Query("department"),
		Category:   c.Query("category"),
		Tags:       c.QueryArray("tag"),
		Sort:       engine.SortField(c.DefaultQuery("sort", string(engine.SortByID))),
	}
	if f.Status != "" && !task.IsValidStatus(f.Status) {
		return "", f, fmt.Errorf("invalid status %q", f.Status)
	}
	if f.Priority != "" && !task.IsValidPriority(f.Priority) {
		return "", f, fmt.Errorf("invalid priority %q", f.Priority)
	}
	switch f.Sort {
	case engine.SortByID, engine.SortByDue, engine.SortByPriority:
	default:
		return "", f, fmt.Errorf("invalid sort %q", f.Sort)
	}
	for name, dst := range map[string]**time.Time{"due_after": &f.DueAfter, "due_before": &f.DueBefore} {
		if v := c.Query(name); v != "" {
			t, err := parseTime(v)
			if err != nil {
				return "", f, fmt.Errorf("%s: %w", name, err)
			}
			*dst = &t
		}
	}
	return c.Query("q"), f, nil
}

func (s *Server) listTasks(c *gin.Context) {
	q, f, err := filterFromQuery(c)
	if err != nil {
		badRequest(c, "invalid query", err)
		return
	}
	c.JSON(http.StatusOK, s.presentAll(s.engine.SearchTasks(q, f)))
}

func (s *Server) tasksByUser(c *gin.Context) {
	c.JSON(http.StatusOK, s.presentAll(s.engine.TasksByUser(c.Param("user"))))
}

func (s *Server) createTask(c *gin.Context) {
	var d task.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, "invalid task body", err)
		return
	}
	t, err := s.engine.CreateTask(c.Request.Context(), d)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.present(t, s.engine.Now()))
}

func (s *Server) getTask(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	t, err := s.engine.GetTask(id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.present(t, s.engine.Now()))
}

func (s *Server) updateTask(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	var p task.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "invalid patch body", err)
		return
	}
	t, err := s.engine.UpdateTask(c.Request.Context(), id, p)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.present(t, s.engine.Now()))
}

func (s *Server) deleteTask(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	if _, err := s.engine.DeleteTask(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type usersBody struct {
	Users []string `json:"users"`
}

func (s *Server) assignTask(c *gin.Context) {
	s.changeAssignees(c, s.engine.AssignTask)
}

func (s *Server) unassignTask(c *gin.Context) {
	s.changeAssignees(c, s.engine.UnassignTask)
}

func (s *Server) changeAssignees(c *gin.Context, apply func(context.Context, int64, ...string) (*task.Task, error)) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	var body usersBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid users body", err)
		return
	}
	if len(body.Users) == 0 {
		badRequest(c, "users must not be empty", nil)
		return
	}
	t, err := apply(c.Request.Context(), id, body.Users...)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.present(t, s.engine.Now()))
}

type progressBody struct {
	Progress    *int     `json:"progress"`
	ActualHours *float64 `json:"actual_hours"`
}

func (s *Server) updateProgress(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	var body progressBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid progress body", err)
		return
	}
	if body.Progress == nil {
		badRequest(c, "progress is required", nil)
		return
	}
	t, err := s.engine.UpdateTaskProgress(c.Request.Context(), id, *body.Progress, body.ActualHours)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.present(t, s.engine.Now()))
}

func (s *Server) canStart(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	can, err := s.engine.CanStart(id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": id, "can_start": can})
}

type chainEntry struct {
	ID       int64       `json:"id"`
	Title    string      `json:"title"`
	Status   task.Status `json:"status"`
	Depth    int         `json:"depth"`
	CanStart bool        `json:"can_start"`
}

// dependencyChain returns the transitive dependencies, root first. The
// limit parameter stops the walk early.
func (s *Server) dependencyChain(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit", err)
			return
		}
		limit = n
	}
	chain, err := s.engine.DependencyChain(id)
	if err != nil {
		handleError(c, err)
		return
	}
	out := []chainEntry{}
	for n := range chain.All() {
		out = append(out, chainEntry{
			ID:       n.Task.ID,
			Title:    n.Task.Title,
			Status:   n.Task.Status,
			Depth:    n.Depth,
			CanStart: n.CanStart,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	c.JSON(http.StatusOK, out)
}

type dependencyBody struct {
	DependsOn int64 `json:"depends_on"`
}

func (s *Server) addDependency(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	var body dependencyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid dependency body", err)
		return
	}
	if body.DependsOn <= 0 {
		badRequest(c, "depends_on must be a task ID", nil)
		return
	}
	t, err := s.engine.AddDependency(c.Request.Context(), id, body.DependsOn)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.present(t, s.engine.Now()))
}

func (s *Server) removeDependency(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	dep, ok := taskID(c, "dep")
	if !ok {
		return
	}
	t, err := s.engine.RemoveDependency(c.Request.Context(), id, dep)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.present(t, s.engine.Now()))
}

func (s *Server) overdue(c *gin.Context) {
	c.JSON(http.StatusOK, s.presentAll(s.engine.OverdueTasks(s.engine.Now())))
}

func (s *Server) upcoming(c *gin.Context) {
	days := s.upcomingDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "invalid days", err)
			return
		}
		days = n
	}
	c.JSON(http.StatusOK, s.presentAll(s.engine.UpcomingTasks(s.engine.Now(), days)))
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats(s.engine.Now()))
}

// tick runs one periodic pass on demand. Schedule failures come back in the
// body alongside whatever the tick did achieve.
func (s *Server) tick(c *gin.Context) {
	report, err := s.engine.Tick(c.Request.Context())
	body := gin.H{"report": report, "changed": report.Changed()}
	if err != nil {
		if c.Request.Context().Err() != nil {
			handleError(c, err)
			return
		}
		body["errors"] = strings.Split(err.Error(), "\n")
	}
	c.JSON(http.StatusOK, body)
}
