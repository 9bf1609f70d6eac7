package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/hrdesk/internal/recurrence"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// recurrenceFlags holds the recurrence rule flags used by task new and
// recurring create.
type recurrenceFlags struct {
	typ      string
	interval int
	cron     string
	until    string
}

// register adds the flags. typeFlag names the rule type flag so task new can
// expose it as --recur.
func (r *recurrenceFlags) register(cmd *cobra.Command, typeFlag string) {
	fl := cmd.Flags()
	fl.StringVar(&r.typ, typeFlag, "", "daily, weekly, monthly, quarterly, yearly or custom")
	fl.IntVar(&r.interval, "every", 1, "repeat every N periods")
	fl.StringVar(&r.cron, "cron", "", "five-field cron expression for custom rules")
	fl.StringVar(&r.until, "until", "", "stop repeating after this date")
}

// rule returns nil when no rule type was given.
func (r *recurrenceFlags) rule() (*task.Recurrence, error) {
	if r.typ == "" {
		if r.cron != "" || r.until != "" {
			return nil, fmt.Errorf("--cron and --until need a recurrence type")
		}
		return nil, nil
	}
	end, err := optionalDate(r.until)
	if err != nil {
		return nil, err
	}
	return &task.Recurrence{
		Type:     task.RecurringType(r.typ),
		Interval: r.interval,
		EndDate:  end,
		Cron:     r.cron,
	}, nil
}

func newRecurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recurring",
		Aliases: []string{"sched"},
		Short:   "Manage recurring schedules",
	}
	cmd.AddCommand(newRecurringListCmd())
	cmd.AddCommand(newRecurringCreateCmd())
	cmd.AddCommand(newRecurringCancelCmd())
	return cmd
}

func newRecurringListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				var out []*recurrence.Schedule
				for _, sc := range a.engine.Schedules() {
					if !activeOnly || sc.IsActive {
						out = append(out, sc)
					}
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), out)
				}
				if len(out) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No schedules.")
					return nil
				}
				return printSchedules(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active schedules")
	return cmd
}

func printSchedules(w io.Writer, list []*recurrence.Schedule) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTASK\tRULE\tNEXT DUE\tACTIVE\tCREATED")
	for _, sc := range list {
		fmt.Fprintf(tw, "%s\t#%d\t%s\t%s\t%t\t%d\n",
			sc.ID, sc.ParentTaskID, describeRule(sc), sc.NextDue.Format(time.DateOnly), sc.IsActive, len(sc.CreatedInstances))
	}
	return tw.Flush()
}

func describeRule(sc *recurrence.Schedule) string {
	if sc.Type == task.RecurCustom {
		return "cron " + sc.Cron
	}
	if sc.Interval > 1 {
		return fmt.Sprintf("every %d × %s", sc.Interval, sc.Type)
	}
	return string(sc.Type)
}

func newRecurringCreateCmd() *cobra.Command {
	var recur recurrenceFlags
	cmd := &cobra.Command{
		Use:   "create <task-id>",
		Short: "Make a task recurring",
		Long: `Make a task recurring. The first instance falls one step after the task's
due date, or one step after now when it has none. An existing schedule for
the task is replaced.

Examples:
  hrdesk recurring create 7 --type monthly
  hrdesk recurring create 9 --type custom --cron "0 9 * * 1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if recur.typ == "" {
				return fmt.Errorf("--type is required")
			}
			rule, err := recur.rule()
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				sc, err := a.engine.CreateSchedule(cmd.Context(), id, *rule)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), sc)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s created for task #%d; next due %s\n",
					sc.ID, sc.ParentTaskID, sc.NextDue.Format(time.DateOnly))
				return nil
			})
		},
	}
	recur.register(cmd, "type")
	return cmd
}

func newRecurringCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <schedule-id>",
		Short: "Stop a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				sc, err := a.engine.CancelSchedule(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s cancelled\n", sc.ID)
				return nil
			})
		},
	}
}
