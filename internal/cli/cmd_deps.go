package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Manage task dependencies",
	}
	cmd.AddCommand(newDepsAddCmd())
	cmd.AddCommand(newDepsRemoveCmd())
	cmd.AddCommand(newDepsChainCmd())
	return cmd
}

func parseIDPair(args []string) (int64, int64, error) {
	id, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	dep, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}
	return id, dep, nil
}

func newDepsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <task-id> <depends-on-id>",
		Short: "Make a task wait on another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, dep, err := parseIDPair(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				if _, err := a.engine.AddDependency(cmd.Context(), id, dep); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task #%d now depends on #%d\n", id, dep)
				return nil
			})
		},
	}
}

func newDepsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task-id> <depends-on-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a dependency",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, dep, err := parseIDPair(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				if _, err := a.engine.RemoveDependency(cmd.Context(), id, dep); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task #%d no longer depends on #%d\n", id, dep)
				return nil
			})
		},
	}
}

type chainLine struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Depth    int    `json:"depth"`
	CanStart bool   `json:"can_start"`
}

func newDepsChainCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "chain <task-id>",
		Short: "Show everything a task transitively waits on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				chain, err := a.engine.DependencyChain(id)
				if err != nil {
					return err
				}
				var lines []chainLine
				for n := range chain.All() {
					if limit > 0 && len(lines) >= limit {
						break
					}
					lines = append(lines, chainLine{
						ID:       n.Task.ID,
						Title:    n.Task.Title,
						Status:   string(n.Task.Status),
						Depth:    n.Depth,
						CanStart: n.CanStart,
					})
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), lines)
				}
				for _, l := range lines {
					mark := " "
					if l.CanStart {
						mark = "✓"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s%s #%d %s [%s]\n",
						strings.Repeat("  ", l.Depth), mark, l.ID, l.Title, l.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many entries (0 for all)")
	return cmd
}
