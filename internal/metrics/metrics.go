// Package metrics exposes task engine instrumentation through OpenTelemetry
// with a Prometheus exporter.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/randalmurphal/hrdesk"

// Attribute keys.
var (
	AttrOp     = attribute.Key("operation")
	AttrStatus = attribute.Key("status")
	AttrResult = attribute.Key("result")
)

// StatusCountFunc reports the current number of tasks per status.
type StatusCountFunc func() map[string]int64

// Recorder owns a meter provider and the engine's instruments. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	taskOps      metric.Int64Counter
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	instances    metric.Int64Counter
	saveFailures metric.Int64Counter
	tasksGauge   metric.Int64ObservableGauge
	dropped      metric.Int64ObservableCounter

	mu          sync.Mutex
	statusCount StatusCountFunc
	droppedFn   func() uint64
}

// New creates a Recorder with its own Prometheus registry.
func New(ctx context.Context, serviceName string) (*Recorder, error) {
	if serviceName == "" {
		serviceName = "hrdesk"
	}
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}

	r := &Recorder{
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		),
		handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
	}
	if err := r.initInstruments(); err != nil {
		_ = r.provider.Shutdown(ctx)
		return nil, err
	}
	return r, nil
}

func (r *Recorder) initInstruments() error {
	m := r.provider.Meter(meterName)
	var err error

	r.taskOps, err = m.Int64Counter("hrdesk_task_operations_total",
		metric.WithDescription("Task commands by operation and result"))
	if err != nil {
		return err
	}
	r.ticks, err = m.Int64Counter("hrdesk_ticks_total",
		metric.WithDescription("Scheduler ticks run"))
	if err != nil {
		return err
	}
	r.tickDuration, err = m.Float64Histogram("hrdesk_tick_duration_seconds",
		metric.WithDescription("Scheduler tick duration in seconds"))
	if err != nil {
		return err
	}
	r.instances, err = m.Int64Counter("hrdesk_recurring_instances_total",
		metric.WithDescription("Task instances materialized from recurring schedules"))
	if err != nil {
		return err
	}
	r.saveFailures, err = m.Int64Counter("hrdesk_persistence_failures_total",
		metric.WithDescription("Snapshot saves or loads that failed"))
	if err != nil {
		return err
	}
	r.tasksGauge, err = m.Int64ObservableGauge("hrdesk_tasks",
		metric.WithDescription("Number of tasks by status"))
	if err != nil {
		return err
	}
	r.dropped, err = m.Int64ObservableCounter("hrdesk_events_dropped_total",
		metric.WithDescription("Events not delivered because a subscriber queue was full"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		r.mu.Lock()
		counts, dropped := r.statusCount, r.droppedFn
		r.mu.Unlock()
		if counts != nil {
			for status, n := range counts() {
				o.ObserveInt64(r.tasksGauge, n, metric.WithAttributes(AttrStatus.String(status)))
			}
		}
		if dropped != nil {
			o.ObserveInt64(r.dropped, int64(dropped()))
		}
		return nil
	}, r.tasksGauge, r.dropped)
	return err
}

// Handler serves the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return r.handler
}

// ObserveStatusCounts registers the source of the tasks-by-status gauge.
func (r *Recorder) ObserveStatusCounts(fn StatusCountFunc) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusCount = fn
}

// ObserveDroppedEvents registers the source of the dropped-events counter,
// normally MemoryPublisher.Dropped.
func (r *Recorder) ObserveDroppedEvents(fn func() uint64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.droppedFn = fn
}

// TaskOp records one task command. err decides the result attribute.
func (r *Recorder) TaskOp(ctx context.Context, op string, err error) {
	if r == nil {
		return
	}
	r.taskOps.Add(ctx, 1, metric.WithAttributes(AttrOp.String(op), AttrResult.String(result(err))))
}

// Tick records a finished scheduler tick.
func (r *Recorder) Tick(ctx context.Context, d time.Duration, created int, err error) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(AttrResult.String(result(err)))
	r.ticks.Add(ctx, 1, attrs)
	r.tickDuration.Record(ctx, d.Seconds(), attrs)
	if created > 0 {
		r.instances.Add(ctx, int64(created))
	}
}

// PersistenceFailure records a failed load or save.
func (r *Recorder) PersistenceFailure(ctx context.Context, op string) {
	if r == nil {
		return
	}
	r.saveFailures.Add(ctx, 1, metric.WithAttributes(AttrOp.String(op)))
}

// Shutdown flushes and stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
