package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/randalmurphal/hrdesk/internal/task"
)

// Styles holds the styles used by Render.
type Styles struct {
	Header   lipgloss.Style
	Cell     lipgloss.Style
	Overdue  lipgloss.Style
	Done     lipgloss.Style
	Critical lipgloss.Style
	Border   lipgloss.Style
}

// DefaultStyles returns the colored styles used on terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		Cell:     lipgloss.NewStyle().Padding(0, 1),
		Overdue:  lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("196")),
		Done:     lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("241")),
		Critical: lipgloss.NewStyle().Padding(0, 1).Bold(true),
		Border:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// PlainStyles returns styles without color, for pipes and files.
func PlainStyles() Styles {
	cell := lipgloss.NewStyle().Padding(0, 1)
	return Styles{Header: cell, Cell: cell, Overdue: cell, Done: cell, Critical: cell, Border: lipgloss.NewStyle()}
}

// TableOptions controls Render.
type TableOptions struct {
	Now    time.Time
	Width  int // zero leaves the table at its natural width
	Styles Styles
}

var tableHeaders = []string{"ID", "TITLE", "STATUS", "PRI", "ASSIGNEES", "DUE", "PROGRESS"}

// Render draws tasks as a bordered table.
func Render(tasks []*task.Task, opts TableOptions) string {
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			strings.ReplaceAll(string(t.Status), "_", " "),
			string(t.Priority),
			strings.Join(t.AssignedTo, ", "),
			task.FormatDue(t.DueDate, opts.Now),
			strconv.Itoa(t.Progress) + "%",
		}
	}

	st := opts.Styles
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.Border).
		Headers(tableHeaders...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.Header
			}
			if row < 0 || row >= len(tasks) {
				return st.Cell
			}
			t := tasks[row]
			switch {
			case task.IsDone(t.Status):
				return st.Done
			case t.IsOverdue(opts.Now):
				return st.Overdue
			case t.Priority == task.PriorityCritical:
				return st.Critical
			}
			return st.Cell
		})
	if opts.Width > 0 {
		tbl = tbl.Width(opts.Width)
	}
	return tbl.String()
}
