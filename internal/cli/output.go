package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/randalmurphal/hrdesk/internal/export"
	"github.com/randalmurphal/hrdesk/internal/task"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// terminal reports whether w is an interactive terminal and its width.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return true, 0
	}
	return true, width
}

// printTasks writes tasks as JSON with --json, otherwise as a table that is
// colored and fitted to the width when w is a terminal.
func printTasks(w io.Writer, tasks []*task.Task, now time.Time, empty string) error {
	if jsonOut {
		if tasks == nil {
			tasks = []*task.Task{}
		}
		return printJSON(w, tasks)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(w, empty)
		return nil
	}
	opts := export.TableOptions{Now: now, Styles: export.PlainStyles()}
	if tty, width := terminal(w); tty {
		opts.Styles = export.DefaultStyles()
		opts.Width = width
	}
	fmt.Fprintln(w, export.Render(tasks, opts))
	return nil
}

// printTask writes one task's details.
func printTask(w io.Writer, t *task.Task, canStart bool, now time.Time) error {
	if jsonOut {
		return printJSON(w, t)
	}

	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-12s %s\n", label+":", value)
		}
	}
	ids := func(v []int64) string {
		parts := make([]string, len(v))
		for i, id := range v {
			parts[i] = fmt.Sprintf("#%d", id)
		}
		return strings.Join(parts, ", ")
	}
	date := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	}

	fmt.Fprintf(w, "#%d %s\n", t.ID, t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, "\n%s\n\n", t.Description)
	}
	line("Status", string(t.Status))
	line("Priority", string(t.Priority))
	line("Progress", fmt.Sprintf("%d%%", t.Progress))
	line("Assigned", strings.Join(t.AssignedTo, ", "))
	line("By", t.AssignedBy)
	if t.DueDate != nil {
		line("Due", date(t.DueDate)+" ("+task.FormatDue(t.DueDate, now)+")")
	}
	line("Started", date(t.StartDate))
	line("Completed", date(t.CompletedAt))
	if t.EstimatedHours > 0 || t.ActualHours > 0 {
		line("Hours", task.FormatHours(t.ActualHours)+" of "+task.FormatHours(t.EstimatedHours))
	}
	line("Depends on", ids(t.Dependencies))
	line("Blocks", ids(t.Dependents))
	if len(t.Dependencies) > 0 {
		state := "blocked"
		if canStart {
			state = "ready"
		}
		line("Can start", state)
	}
	line("Tags", strings.Join(t.Tags, ", "))
	line("Category", t.Category)
	line("Department", t.Department)
	line("Location", t.Location)
	if t.IsRecurring && t.Recurrence != nil {
		rule := fmt.Sprintf("%s every %d", t.Recurrence.Type, t.Recurrence.Interval)
		if t.Recurrence.Cron != "" {
			rule = fmt.Sprintf("%s %q", t.Recurrence.Type, t.Recurrence.Cron)
		}
		line("Repeats", rule)
	}
	line("Schedule", t.ParentRecurringID)
	return nil
}
