package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/hrdesk/internal/engine"
	"github.com/randalmurphal/hrdesk/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, inspect and change tasks",
	}
	cmd.AddCommand(newTaskNewCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskEditCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskAssignCmd(true))
	cmd.AddCommand(newTaskAssignCmd(false))
	cmd.AddCommand(newTaskProgressCmd())
	cmd.AddCommand(newTaskSearchCmd())
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", s)
	}
	return t, nil
}

// taskFields holds the flags shared by task new and task edit.
type taskFields struct {
	description string
	priority    string
	status      string
	assign      []string
	assignedBy  string
	due         string
	start       string
	estimate    float64
	deps        []int64
	tags        []string
	category    string
	department  string
	location    string
}

func (f *taskFields) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.description, "description", "d", "", "longer description")
	fl.StringVarP(&f.priority, "priority", "p", "", "low, medium, high or critical")
	fl.StringVar(&f.status, "status", "", "pending, in_progress, on_hold, completed, cancelled or overdue")
	fl.StringSliceVarP(&f.assign, "assign", "a", nil, "assignees (repeat or comma-separate)")
	fl.StringVar(&f.assignedBy, "by", "", "who assigned the task")
	fl.StringVar(&f.due, "due", "", "due date, YYYY-MM-DD or RFC 3339")
	fl.StringVar(&f.start, "start", "", "start date, YYYY-MM-DD or RFC 3339")
	fl.Float64Var(&f.estimate, "estimate", 0, "estimated hours")
	fl.Int64SliceVar(&f.deps, "deps", nil, "IDs of tasks this one waits for")
	fl.StringSliceVarP(&f.tags, "tag", "t", nil, "tags")
	fl.StringVar(&f.category, "category", "", "category")
	fl.StringVar(&f.department, "department", "", "department")
	fl.StringVar(&f.location, "location", "", "location")
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (f *taskFields) draft(title string) (task.Draft, error) {
	due, err := optionalDate(f.due)
	if err != nil {
		return task.Draft{}, err
	}
	start, err := optionalDate(f.start)
	if err != nil {
		return task.Draft{}, err
	}
	return task.Draft{
		Title:          title,
		Description:    f.description,
		Priority:       task.Priority(f.priority),
		Status:         task.Status(f.status),
		AssignedTo:     f.assign,
		AssignedBy:     f.assignedBy,
		DueDate:        due,
		StartDate:      start,
		EstimatedHours: f.estimate,
		Dependencies:   f.deps,
		Tags:           f.tags,
		Category:       f.category,
		Department:     f.department,
		Location:       f.location,
	}, nil
}

// patch includes only the flags the user set.
func (f *taskFields) patch(cmd *cobra.Command) (task.Patch, error) {
	var p task.Patch
	changed := cmd.Flags().Changed

	if changed("description") {
		p.Description = &f.description
	}
	if changed("priority") {
		pr := task.Priority(f.priority)
		p.Priority = &pr
	}
	if changed("status") {
		st := task.Status(f.status)
		p.Status = &st
	}
	if changed("assign") {
		p.AssignedTo = &f.assign
	}
	if changed("by") {
		p.AssignedBy = &f.assignedBy
	}
	if changed("due") {
		if f.due == "" {
			p.ClearDueDate = true
		} else {
			due, err := parseDate(f.due)
			if err != nil {
				return p, err
			}
			p.DueDate = &due
		}
	}
	if changed("start") {
		if f.start == "" {
			p.ClearStartDate = true
		} else {
			start, err := parseDate(f.start)
			if err != nil {
				return p, err
			}
			p.StartDate = &start
		}
	}
	if changed("estimate") {
		p.EstimatedHours = &f.estimate
	}
	if changed("deps") {
		p.Dependencies = &f.deps
	}
	if changed("tag") {
		p.Tags = &f.tags
	}
	if changed("category") {
		p.Category = &f.category
	}
	if changed("department") {
		p.Department = &f.department
	}
	if changed("location") {
		p.Location = &f.location
	}
	return p, nil
}

func newTaskNewCmd() *cobra.Command {
	var fields taskFields
	var recur recurrenceFlags

	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Create a task",
		Long: `Create a task. Dependencies are checked one edge at a time; an edge that
would close a cycle rejects the whole task.

Examples:
  hrdesk task new "Collect I-9 forms" --assign ana --due 2025-05-01
  hrdesk task new "Badge access" --deps 3,4 --priority high
  hrdesk task new "Timesheet approval" --recur weekly --due 2025-05-02`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := fields.draft(args[0])
			if err != nil {
				return err
			}
			if d.Recurrence, err = recur.rule(); err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				t, err := a.engine.CreateTask(cmd.Context(), d)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), t)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task #%d: %s\n", t.ID, t.Title)
				return nil
			})
		},
	}
	fields.register(cmd)
	recur.register(cmd, "recur")
	return cmd
}

// filterFlags holds the search flags shared by list, search and export.
type filterFlags struct {
	status     string
	priority   string
	assignee   string
	department string
	category   string
	tags       []string
	dueAfter   string
	dueBefore  string
	sort       string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.status, "status", "", "only this status")
	fl.StringVar(&f.priority, "priority", "", "only this priority")
	fl.StringVar(&f.assignee, "assignee", "", "only tasks assigned to this user")
	fl.StringVar(&f.department, "department", "", "only this department")
	fl.StringVar(&f.category, "category", "", "only this category")
	fl.StringSliceVarP(&f.tags, "tag", "t", nil, "only tasks with all of these tags")
	fl.StringVar(&f.dueAfter, "due-after", "", "due on or after this date")
	fl.StringVar(&f.dueBefore, "due-before", "", "due on or before this date")
	fl.StringVar(&f.sort, "sort", string(engine.SortByID), "sort by id, due or priority")
}

func (f *filterFlags) filter() (engine.Filter, error) {
	out := engine.Filter{
		Status:     task.Status(f.status),
		Priority:   task.Priority(f.priority),
		Assignee:   f.assignee,
		Department: f.department,
		Category:   f.category,
		Tags:       f.tags,
		Sort:       engine.SortField(f.sort),
	}
	if out.Status != "" && !task.IsValidStatus(out.Status) {
		return out, fmt.Errorf("invalid status %q", f.status)
	}
	if out.Priority != "" && !task.IsValidPriority(out.Priority) {
		return out, fmt.Errorf("invalid priority %q", f.priority)
	}
	switch out.Sort {
	case engine.SortByID, engine.SortByDue, engine.SortByPriority:
	default:
		return out, fmt.Errorf("invalid sort %q", f.sort)
	}
	var err error
	if out.DueAfter, err = optionalDate(f.dueAfter); err != nil {
		return out, err
	}
	if out.DueBefore, err = optionalDate(f.dueBefore); err != nil {
		return out, err
	}
	return out, nil
}

func newTaskListCmd() *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				return printTasks(cmd.OutOrStdout(), a.engine.SearchTasks("", f), a.engine.Now(), "No tasks found.")
			})
		},
	}
	ff.register(cmd)
	return cmd
}

func newTaskSearchCmd() *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles, descriptions and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				return printTasks(cmd.OutOrStdout(), a.engine.SearchTasks(args[0], f), a.engine.Now(), "No matching tasks.")
			})
		},
	}
	ff.register(cmd)
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				t, err := a.engine.GetTask(id)
				if err != nil {
					return err
				}
				can, err := a.engine.CanStart(id)
				if err != nil {
					return err
				}
				return printTask(cmd.OutOrStdout(), t, can, a.engine.Now())
			})
		},
	}
}

func newTaskEditCmd() *cobra.Command {
	var fields taskFields
	var title string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change task fields",
		Long: `Change the fields named by flags; everything else is left alone.
--deps replaces the whole dependency list. An empty --due or --start clears
the date.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := fields.patch(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("title") {
				p.Title = &title
			}
			if p.IsEmpty() {
				return fmt.Errorf("nothing to change: pass at least one field flag")
			}
			return withApp(cmd, func(a *app) error {
				t, err := a.engine.UpdateTask(cmd.Context(), id, p)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), t)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated task #%d\n", t.ID)
				return nil
			})
		},
	}
	fields.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "new title")
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task and every dependency edge that references it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				t, err := a.engine.DeleteTask(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d: %s\n", t.ID, t.Title)
				return nil
			})
		},
	}
}

func newTaskAssignCmd(assign bool) *cobra.Command {
	use, short, verb := "assign", "Add assignees", "Assigned"
	if !assign {
		use, short, verb = "unassign", "Remove assignees", "Unassigned"
	}
	return &cobra.Command{
		Use:   use + " <id> <user>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				apply := a.engine.AssignTask
				if !assign {
					apply = a.engine.UnassignTask
				}
				t, err := apply(cmd.Context(), id, args[1:]...)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), t)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s task #%d; assignees: %v\n", verb, t.ID, t.AssignedTo)
				return nil
			})
		},
	}
}

func newTaskProgressCmd() *cobra.Command {
	var hours float64
	cmd := &cobra.Command{
		Use:   "progress <id> <percent>",
		Short: "Record progress (100 completes the task)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			pct, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid progress %q", args[1])
			}
			var actual *float64
			if cmd.Flags().Changed("hours") {
				actual = &hours
			}
			return withApp(cmd, func(a *app) error {
				t, err := a.engine.UpdateTaskProgress(cmd.Context(), id, pct, actual)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), t)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task #%d at %d%% (%s)\n", t.ID, t.Progress, t.Status)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&hours, "hours", 0, "actual hours spent so far")
	return cmd
}
