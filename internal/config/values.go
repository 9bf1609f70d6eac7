package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// setting binds a dotted key to one leaf of Config.
type setting struct {
	key string
	get func(*Config) string
	set func(*Config, string) error
}

func stringSetting(key string, at func(*Config) *string) setting {
	return setting{
		key: key,
		get: func(c *Config) string { return *at(c) },
		set: func(c *Config, v string) error { *at(c) = v; return nil },
	}
}

func intSetting(key string, at func(*Config) *int) setting {
	return setting{
		key: key,
		get: func(c *Config) string { return strconv.Itoa(*at(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer %q for %s", v, key)
			}
			*at(c) = n
			return nil
		},
	}
}

func floatSetting(key string, at func(*Config) *float64) setting {
	return setting{
		key: key,
		get: func(c *Config) string { return strconv.FormatFloat(*at(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q for %s", v, key)
			}
			*at(c) = f
			return nil
		},
	}
}

func durationSetting(key string, at func(*Config) *time.Duration) setting {
	return setting{
		key: key,
		get: func(c *Config) string { return at(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration %q for %s", v, key)
			}
			*at(c) = d
			return nil
		},
	}
}

// settings lists every leaf key in the order `config show` prints them.
// TestSettingsCoverYAML keeps it in step with the struct tags.
var settings = []setting{
	stringSetting("storage.driver", func(c *Config) *string { return &c.Storage.Driver }),
	stringSetting("storage.path", func(c *Config) *string { return &c.Storage.Path }),
	stringSetting("storage.dsn", func(c *Config) *string { return &c.Storage.DSN }),
	stringSetting("storage.redis.addr", func(c *Config) *string { return &c.Storage.Redis.Addr }),
	stringSetting("storage.redis.password", func(c *Config) *string { return &c.Storage.Redis.Password }),
	intSetting("storage.redis.db", func(c *Config) *int { return &c.Storage.Redis.DB }),
	stringSetting("storage.redis.key", func(c *Config) *string { return &c.Storage.Redis.Key }),
	durationSetting("scheduler.interval", func(c *Config) *time.Duration { return &c.Scheduler.Interval }),
	durationSetting("scheduler.startup_delay", func(c *Config) *time.Duration { return &c.Scheduler.StartupDelay }),
	durationSetting("scheduler.due_soon", func(c *Config) *time.Duration { return &c.Scheduler.DueSoon }),
	intSetting("queries.upcoming_days", func(c *Config) *int { return &c.Queries.UpcomingDays }),
	stringSetting("server.addr", func(c *Config) *string { return &c.Server.Addr }),
	floatSetting("server.rate_limit", func(c *Config) *float64 { return &c.Server.RateLimit }),
	intSetting("server.rate_burst", func(c *Config) *int { return &c.Server.RateBurst }),
	stringSetting("log.level", func(c *Config) *string { return &c.Log.Level }),
	stringSetting("log.format", func(c *Config) *string { return &c.Log.Format }),
}

func lookupSetting(key string) (setting, error) {
	for _, s := range settings {
		if s.key == key {
			return s, nil
		}
	}
	for _, s := range settings {
		if strings.HasPrefix(s.key, key+".") {
			return setting{}, fmt.Errorf("%s is a section, not a value", key)
		}
	}
	return setting{}, fmt.Errorf("unknown config key: %s", key)
}

// GetValue returns the value at a dotted key such as "scheduler.interval".
func (c *Config) GetValue(key string) (string, error) {
	s, err := lookupSetting(key)
	if err != nil {
		return "", err
	}
	return s.get(c), nil
}

// SetValue parses value for the key's type and stores it.
func (c *Config) SetValue(key, value string) error {
	s, err := lookupSetting(key)
	if err != nil {
		return err
	}
	return s.set(c, value)
}

// AllConfigPaths returns every leaf key.
func AllConfigPaths() []string {
	keys := make([]string, len(settings))
	for i, s := range settings {
		keys[i] = s.key
	}
	return keys
}
