// Package runner drives the engine's periodic tick.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/hrdesk/internal/engine"
)

// Defaults used when the config leaves a field at zero.
const (
	DefaultInterval     = time.Hour
	DefaultStartupDelay = 5 * time.Second
)

// Ticker is the subset of the engine the runner needs.
type Ticker interface {
	Tick(ctx context.Context) (engine.TickReport, error)
}

// Config configures a Runner.
type Config struct {
	Interval     time.Duration
	StartupDelay time.Duration
	Logger       *slog.Logger

	// OnTick is called after every tick, successful or not.
	OnTick func(engine.TickReport, error)
}

// Runner ticks the engine once after a startup delay and then on a fixed
// interval. Ticks run on a single goroutine, so they never overlap; a tick
// that outlasts the interval delays the next one instead of queueing extra
// ticks.
type Runner struct {
	ticker   Ticker
	interval time.Duration
	delay    time.Duration
	logger   *slog.Logger
	onTick   func(engine.TickReport, error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	doneCh  chan struct{}
	started bool
}

// New creates a runner for t.
func New(t Ticker, cfg Config) *Runner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	delay := cfg.StartupDelay
	if delay < 0 {
		delay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		ticker:   t,
		interval: interval,
		delay:    delay,
		logger:   logger,
		onTick:   cfg.OnTick,
	}
}

// Run blocks until ctx is cancelled. It returns nil on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	delay := time.NewTimer(r.delay)
	defer delay.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-delay.C:
	}
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("runner stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// Start runs the loop in a goroutine. Calling Start on a running runner is a
// no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.doneCh = make(chan struct{})
	r.started = true

	go func(done chan struct{}) {
		defer close(done)
		_ = r.Run(ctx)
	}(r.doneCh)
}

// Stop cancels the loop and waits for an in-flight tick to finish. Safe to
// call multiple times.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel, done := r.cancel, r.doneCh
	r.mu.Unlock()

	cancel()
	<-done
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	report, err := r.ticker.Tick(ctx)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		r.logger.Debug("tick interrupted", "error", err)
	case err != nil:
		// A failed tick leaves the schedule where it was; the next tick retries.
		r.logger.Warn("tick failed", "error", err, "duration", time.Since(start))
	case report.Changed():
		r.logger.Info("tick",
			"overdue", len(report.Overdue),
			"created", len(report.Created),
			"deactivated", len(report.Deactivated),
			"duration", time.Since(start))
	default:
		r.logger.Debug("tick", "due_soon", len(report.DueSoon), "duration", time.Since(start))
	}
	if r.onTick != nil {
		r.onTick(report, err)
	}
}
