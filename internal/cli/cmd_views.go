package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List open tasks past their due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				now := a.engine.Now()
				return printTasks(cmd.OutOrStdout(), a.engine.OverdueTasks(now), now, "Nothing overdue.")
			})
		},
	}
}

func newUpcomingCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List tasks due soon",
		Long: `List tasks that are not completed and fall due between now and the end of
the window. The default window comes from queries.upcoming_days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				window := a.cfg.Config.Queries.UpcomingDays
				now := a.engine.Now()
				return printTasks(cmd.OutOrStdout(), a.engine.UpcomingTasks(now, window), now,
					fmt.Sprintf("Nothing due in the next %d days.", window))
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "window in days")
	bindConfigFlag(cmd, "days", "queries.upcoming_days")
	return cmd
}

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler pass now",
		Long: `Run the periodic work once: move past-due tasks to overdue, send due
reminders and create any recurring instances that have come due. Run it from
cron when no server is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				report, tickErr := a.engine.Tick(cmd.Context())
				if jsonOut {
					if err := printJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
					return tickErr
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Tick at %s\n", report.At.Format(time.RFC3339))
				fmt.Fprintf(out, "  overdue:     %v\n", orNone(report.Overdue))
				fmt.Fprintf(out, "  due soon:    %v\n", orNone(report.DueSoon))
				created := make([]int64, 0, len(report.Created))
				for _, occ := range report.Created {
					created = append(created, occ.TaskID)
				}
				fmt.Fprintf(out, "  created:     %v\n", orNone(created))
				fmt.Fprintf(out, "  deactivated: %v\n", orNone(report.Deactivated))
				return tickErr
			})
		},
	}
}

func orNone[T any](list []T) any {
	if len(list) == 0 {
		return "none"
	}
	return list
}
