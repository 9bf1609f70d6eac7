package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/randalmurphal/hrdesk/internal/clock"
	"github.com/randalmurphal/hrdesk/internal/config"
	"github.com/randalmurphal/hrdesk/internal/engine"
	"github.com/randalmurphal/hrdesk/internal/events"
	"github.com/randalmurphal/hrdesk/internal/storage"
)

// configKeyAnnotation marks a flag that overrides a config key.
const configKeyAnnotation = "hrdesk/config-key"

// bindConfigFlag ties a command flag to a dotted config key. A flag the user
// sets wins over files and the environment.
func bindConfigFlag(cmd *cobra.Command, flag, key string) {
	_ = cmd.Flags().SetAnnotation(flag, configKeyAnnotation, []string{key})
}

// newViper reads HRDESK_* variables by dotted config key, so
// "queries.upcoming_days" comes from HRDESK_QUERIES_UPCOMING_DAYS.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(strings.TrimSuffix(config.EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig resolves configuration for cmd: files through config.Loader,
// HRDESK_* variables through viper, then any bound flags the user set.
func loadConfig(cmd *cobra.Command) (*config.TrackedConfig, error) {
	v := newViper()
	loader := config.Loader{ProjectDir: ".", ExplicitPath: cfgFile, Lookup: v.GetString}
	tc, err := loader.LoadWithSources()
	if err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cmd, v, tc); err != nil {
		return nil, err
	}
	return tc, nil
}

// applyFlagOverrides binds every flag the user set onto v. A bound flag
// outranks the environment inside viper, so v.GetString yields the flag.
func applyFlagOverrides(cmd *cobra.Command, v *viper.Viper, tc *config.TrackedConfig) error {
	var errs []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 || !f.Changed {
			return
		}
		key := keys[0]
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, err.Error())
			return
		}
		if err := tc.Config.SetValue(key, v.GetString(key)); err != nil {
			errs = append(errs, fmt.Sprintf("--%s: %v", f.Name, err))
			return
		}
		tc.SetSource(key, config.SourceFlag, "")
	})
	if len(errs) > 0 {
		return fmt.Errorf("flag overrides: %s", strings.Join(errs, "; "))
	}
	return tc.Config.Validate()
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app is an opened engine plus what it needs to shut down cleanly.
type app struct {
	cfg     *config.TrackedConfig
	logger  *slog.Logger
	backend storage.Backend
	engine  *engine.Engine
}

// openApp loads config and opens the engine on the configured backend.
// Notifications print to stderr as they happen.
func openApp(cmd *cobra.Command, opts ...engine.Option) (*app, error) {
	tc, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openAppWith(cmd.Context(), tc, cmd.ErrOrStderr(), opts...)
}

func openAppWith(ctx context.Context, tc *config.TrackedConfig, errOut io.Writer, opts ...engine.Option) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(tc.Config.Log, errOut)
	slog.SetDefault(logger)

	backend, err := storage.NewBackend(ctx, tc.Config.Storage)
	if err != nil {
		return nil, err
	}
	logger.Debug("storage opened",
		"driver", tc.Config.Storage.Driver,
		"source", tc.GetSource("storage.driver").String())

	base := []engine.Option{
		engine.WithLogger(logger),
		engine.WithDueSoonWindow(tc.Config.Scheduler.DueSoon),
		engine.WithPublisher(events.NewCLIPublisher(errOut)),
	}
	eng, err := engine.Open(ctx, clock.Real{}, backend, append(base, opts...)...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return &app{cfg: tc, logger: logger, backend: backend, engine: eng}, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("close storage", "error", err)
	}
}

// withApp opens the engine, runs fn and closes the backend.
func withApp(cmd *cobra.Command, fn func(*app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
