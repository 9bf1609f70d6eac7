package cli

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/hrdesk/internal/export"
	"github.com/randalmurphal/hrdesk/internal/task"
)

func newExportCmd() *cobra.Command {
	var ff filterFlags
	var outPath, query string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write tasks as CSV",
		Long: `Write tasks as CSV, one row per task. The search flags narrow the rows
the same way task list does.

Examples:
  hrdesk export > tasks.csv
  hrdesk export --department finance --out finance.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				tasks := a.engine.SearchTasks(query, f)
				if outPath == "" {
					return export.WriteCSV(cmd.OutOrStdout(), tasks)
				}
				var buf bytes.Buffer
				if err := export.WriteCSV(&buf, tasks); err != nil {
					return err
				}
				if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d tasks to %s\n", len(tasks), outPath)
				return nil
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVarP(&query, "query", "q", "", "text search over titles, descriptions and tags")
	return cmd
}

// expandImportPaths resolves glob patterns to a sorted, duplicate-free list.
// A pattern without glob syntax must name an existing file.
func expandImportPaths(patterns []string) ([]string, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file-or-glob>...",
		Short: "Create tasks from CSV files",
		Long: `Create tasks from CSV files written by export or a spreadsheet. Every row
gets a fresh ID; the id column is ignored. All files are parsed before
anything is created, and an invalid row rejects the whole import.

Examples:
  hrdesk import onboarding.csv
  hrdesk import 'exports/**/*.csv'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandImportPaths(args)
			if err != nil {
				return err
			}
			var rows []export.Row
			for _, path := range paths {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				parsed, err := export.ParseCSV(f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				rows = append(rows, parsed...)
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows from %d files would be imported\n", len(rows), len(paths))
				return nil
			}
			return withApp(cmd, func(a *app) error {
				created, err := export.Import(cmd.Context(), a.engine, rows)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), created)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks from %d files: %v\n",
					len(created), len(paths), taskIDs(created))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate without creating tasks")
	return cmd
}

func taskIDs(tasks []*task.Task) []int64 {
	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
