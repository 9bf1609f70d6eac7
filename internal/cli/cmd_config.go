package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/hrdesk/internal/config"
)

// secretKeys are masked by `config show --source`.
var secretKeys = map[string]bool{"storage.redis.password": true}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change hrdesk settings",
		Long: `Inspect and change hrdesk settings.

Each layer overrides the ones before it:
  defaults
  ~/.hrdesk/config.yaml            (user)
  ./.hrdesk/config.yaml            (project)
  --config <file>                  (file)
  HRDESK_SECTION_KEY variables     (env)
  command flags such as --addr     (flag)

Examples:
  hrdesk config show --source
  hrdesk config get scheduler.interval
  hrdesk config set storage.driver sqlite
  hrdesk config set --user log.level debug`,
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigGetCmd(), newConfigSetCmd(), newConfigPathsCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var withSource bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Long:  "Print the effective settings as YAML, or with --source as a key/value/origin table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tc, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			w := cmd.OutOrStdout()
			switch {
			case withSource:
				return writeSourceTable(w, tc)
			case jsonOut:
				return printJSON(w, tc.Config)
			}
			return writeYAML(w, tc.Config)
		},
	}
	cmd.Flags().BoolVar(&withSource, "source", false, "show where each value was set")
	return cmd
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeSourceTable(w io.Writer, tc *config.TrackedConfig) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, key := range config.AllConfigPaths() {
		v, err := tc.Config.GetValue(key)
		if err != nil {
			return err
		}
		if secretKeys[key] && v != "" {
			v = "********"
		}
		fmt.Fprintf(tw, "%s\t%s\t(%s)\n", key, v, tc.GetSource(key))
	}
	return tw.Flush()
}

func newConfigGetCmd() *cobra.Command {
	var withSource bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Long:  `Print one setting. Keys are dotted, for example "server.rate_limit".`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			key := args[0]
			v, err := tc.Config.GetValue(key)
			if err != nil {
				return err
			}
			if withSource {
				v = fmt.Sprintf("%s (from %s)", v, tc.GetSource(key))
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSource, "source", false, "show where the value was set")
	return cmd
}

// configTarget picks the file `config set` writes to.
func configTarget(user bool, file string) (string, error) {
	if file != "" {
		return file, nil
	}
	if !user {
		return config.ProjectConfigPath("."), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return config.ProjectConfigPath(home), nil
}

func newConfigSetCmd() *cobra.Command {
	var (
		user bool
		file string
	)
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in a config file",
		Long: `Change one setting and save it. The project file (.hrdesk/config.yaml)
is written unless --user or --file says otherwise. The file is created from
the defaults when it does not exist yet.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			target, err := configTarget(user, file)
			if err != nil {
				return err
			}

			cfg, err := config.LoadFrom(target)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				cfg = config.Default()
			case err != nil:
				return fmt.Errorf("load config from %s: %w", target, err)
			}

			if err := cfg.SetValue(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.SaveTo(target); err != nil {
				return fmt.Errorf("save %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s saved to %s\n", key, value, target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&user, "user", false, "write ~/.hrdesk/config.yaml")
	cmd.Flags().StringVar(&file, "file", "", "write this file")
	cmd.MarkFlagsMutuallyExclusive("user", "file")
	return cmd
}

func newConfigPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List the config files that are read, in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if home, err := os.UserHomeDir(); err == nil {
				files = append(files, config.ProjectConfigPath(home))
			}
			files = append(files, config.ProjectConfigPath("."))
			if cfgFile != "" {
				files = append(files, cfgFile)
			}
			for _, f := range files {
				mark := "missing"
				if _, err := os.Stat(f); err == nil {
					mark = "found"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", f, mark)
			}
			return nil
		},
	}
}
