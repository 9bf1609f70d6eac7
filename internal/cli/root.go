// Package cli implements the hrdesk command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hrdesk",
		Short: "HR task tracking with dependencies and recurring work",
		Long: `hrdesk tracks HR tasks: assignees, due dates, progress, dependencies
between tasks and recurring work that repeats on a schedule.

Configuration is read from ~/.hrdesk/config.yaml, .hrdesk/config.yaml, the
file named by --config and HRDESK_* environment variables, in that order.

Quick start:
  hrdesk task new "Collect I-9 forms" --assign ana --due 2025-05-01
  hrdesk task list --assignee ana
  hrdesk deps add 2 1            Task 2 waits for task 1
  hrdesk overdue                 What is late
  hrdesk serve                   API, websocket stream and scheduler`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (merged over .hrdesk/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	root.AddCommand(newTaskCmd())
	root.AddCommand(newDepsCmd())
	root.AddCommand(newRecurringCmd())
	root.AddCommand(newOverdueCmd())
	root.AddCommand(newUpcomingCmd())
	root.AddCommand(newTickCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, cancel := SetupSignalHandler()
	defer cancel()
	return NewRootCmd().ExecuteContext(ctx)
}
