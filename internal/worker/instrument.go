package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/observability"
)

const instrumentationName = "github.com/facksten/PushRSP-Telegram-bot/internal/worker"

// instrumenter records a span and task metrics around every task a worker runs. Instruments
// come from the global providers, so they start exporting once observability is set up.
type instrumenter struct {
	tracer       trace.Tracer
	tasksActive  metric.Int64UpDownCounter
	taskDuration metric.Float64Histogram
	tasksTotal   metric.Int64Counter
}

func newInstrumenter() *instrumenter {
	meter := otel.Meter(instrumentationName)
	in := &instrumenter{tracer: otel.Tracer(instrumentationName)}
	// Instrument creation only fails on invalid names; a nil instrument disables that signal.
	in.tasksActive, _ = meter.Int64UpDownCounter("pushtutor_worker_tasks_active",
		metric.WithDescription("Tasks currently running on the worker pool"))
	in.taskDuration, _ = meter.Float64Histogram("pushtutor_worker_task_duration_seconds",
		metric.WithDescription("Worker task duration"),
		metric.WithUnit("s"))
	in.tasksTotal, _ = meter.Int64Counter("pushtutor_worker_tasks_total",
		metric.WithDescription("Worker tasks processed"))
	return in
}

func (in *instrumenter) run(ctx context.Context, workerID int, task Task, fn func(context.Context) error) error {
	if in.tasksActive != nil {
		in.tasksActive.Add(ctx, 1)
		defer in.tasksActive.Add(ctx, -1)
	}

	ctx, span := in.tracer.Start(ctx, "worker.task", trace.WithAttributes(
		attribute.String("task.name", task.Name),
		attribute.Int("worker.id", workerID),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"
		observability.RecordError(ctx, err, "")
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	if in.taskDuration != nil {
		in.taskDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	if in.tasksTotal != nil {
		in.tasksTotal.Add(ctx, 1, attrs)
	}
	return err
}
