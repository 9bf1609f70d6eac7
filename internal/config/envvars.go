package config

import (
	"fmt"
	"sort"
	"strings"
)

// EnvPrefix starts every hrdesk environment variable.
const EnvPrefix = "HRDESK_"

// EnvVarName maps a dotted config path to its environment variable,
// e.g. "storage.redis.addr" to HRDESK_STORAGE_REDIS_ADDR.
func EnvVarName(path string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}

// ApplyEnvVars applies HRDESK_* overrides for every known config path and
// returns the paths that were overridden. lookup receives the dotted path and
// returns "" when the variable is unset. A malformed value is an error.
func ApplyEnvVars(tc *TrackedConfig, lookup func(path string) string) ([]string, error) {
	var overridden []string

	for _, path := range AllConfigPaths() {
		value := lookup(path)
		if value == "" {
			continue
		}
		if err := tc.Config.SetValue(path, value); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvVarName(path), err)
		}
		tc.SetSource(path, SourceEnv, "")
		overridden = append(overridden, path)
	}

	sort.Strings(overridden)
	return overridden, nil
}
