package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration from files and the environment.
type Loader struct {
	// ProjectDir holds .hrdesk/config.yaml. Defaults to the working directory.
	ProjectDir string
	// UserDir holds the user-level .hrdesk/config.yaml. Defaults to $HOME.
	UserDir string
	// ExplicitPath, when set, is merged last among files and must exist.
	ExplicitPath string
	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string
	// Lookup resolves a dotted config key from the environment. When set it
	// is used instead of Getenv.
	Lookup func(key string) string
}

// LoadWithSources loads configuration with source tracking.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.hrdesk/config.yaml) - optional
//  3. Project config (.hrdesk/config.yaml) - optional
//  4. Explicit --config file - required if named
//  5. Environment variables (HRDESK_*)
func (l *Loader) LoadWithSources() (*TrackedConfig, error) {
	tc := NewTrackedConfig()

	userDir := l.UserDir
	if userDir == "" {
		userDir, _ = os.UserHomeDir()
	}
	if userDir != "" {
		userPath := ProjectConfigPath(userDir)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(tc, userPath, SourceUser); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := ProjectConfigPath(l.ProjectDir)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(tc, projectPath, SourceProject); err != nil {
			return nil, err // Project config errors are fatal
		}
	}

	if l.ExplicitPath != "" {
		if err := mergeFromFile(tc, l.ExplicitPath, SourceFile); err != nil {
			return nil, err
		}
	}

	if _, err := ApplyEnvVars(tc, l.lookup()); err != nil {
		return nil, err
	}

	if err := tc.Config.Validate(); err != nil {
		return nil, err
	}
	return tc, nil
}

func (l *Loader) lookup() func(string) string {
	if l.Lookup != nil {
		return l.Lookup
	}
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return func(key string) string { return getenv(EnvVarName(key)) }
}

// Load is LoadWithSources without the source map.
func (l *Loader) Load() (*Config, error) {
	tc, err := l.LoadWithSources()
	if err != nil {
		return nil, err
	}
	return tc.Config, nil
}

// mergeFromFile decodes a file over tc.Config and records every key the
// file sets. Keys absent from the file keep their current value.
func mergeFromFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, tc.Config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, key := range flattenKeys("", raw) {
		tc.SetSource(key, source, abs)
	}
	return nil
}

// flattenKeys returns the dotted paths of every leaf in a decoded YAML map.
func flattenKeys(prefix string, m map[string]any) []string {
	var keys []string
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			keys = append(keys, flattenKeys(path, sub)...)
			continue
		}
		keys = append(keys, path)
	}
	sort.Strings(keys)
	return keys
}
