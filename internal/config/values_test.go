package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGetSetValue(t *testing.T) {
	cfg := Default()

	tests := []struct {
		path  string
		value string
	}{
		{"storage.driver", "sqlite"},
		{"storage.redis.db", "3"},
		{"scheduler.due_soon", "2h0m0s"},
		{"server.rate_limit", "2.5"},
		{"queries.upcoming_days", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.NoError(t, cfg.SetValue(tt.path, tt.value))
			got, err := cfg.GetValue(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}

	assert.Equal(t, 2*time.Hour, cfg.Scheduler.DueSoon)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
}

func TestSetValue_Errors(t *testing.T) {
	cfg := Default()

	assert.Error(t, cfg.SetValue("storage.colour", "red"))
	assert.Error(t, cfg.SetValue("storage", "memory"))
	assert.Error(t, cfg.SetValue("scheduler.interval", "soon"))
	assert.Error(t, cfg.SetValue("queries.upcoming_days", "a week"))

	_, err := cfg.GetValue("nope.nothing")
	assert.Error(t, err)
}

func TestAllConfigPaths(t *testing.T) {
	paths := AllConfigPaths()

	assert.Contains(t, paths, "storage.redis.addr")
	assert.Contains(t, paths, "scheduler.startup_delay")
	assert.Contains(t, paths, "log.format")
	assert.NotContains(t, paths, "storage.redis")

	cfg := Default()
	for _, p := range paths {
		_, err := cfg.GetValue(p)
		assert.NoError(t, err, p)
	}
}

func TestEnvVarName(t *testing.T) {
	assert.Equal(t, "HRDESK_STORAGE_REDIS_ADDR", EnvVarName("storage.redis.addr"))
	assert.Equal(t, "HRDESK_LOG_LEVEL", EnvVarName("log.level"))
}

func TestSettingsCoverYAML(t *testing.T) {
	data, err := yaml.Marshal(Default())
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, yaml.Unmarshal(data, &tree))

	var leaves []string
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			if child, ok := v.(map[string]any); ok {
				walk(prefix+k+".", child)
				continue
			}
			leaves = append(leaves, prefix+k)
		}
	}
	walk("", tree)

	assert.ElementsMatch(t, leaves, AllConfigPaths())
}
