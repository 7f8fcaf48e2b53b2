package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/weftlabs/weft/ext"
	"github.com/weftlabs/weft/id"
	"github.com/weftlabs/weft/state"
)

// meterName is the instrumentation scope name for weft metrics.
const meterName = "github.com/weftlabs/weft/observability"

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.ExecutionStarted   = (*MetricsExtension)(nil)
	_ ext.ExecutionCompleted = (*MetricsExtension)(nil)
	_ ext.ExecutionFailed    = (*MetricsExtension)(nil)
	_ ext.ExecutionSuspended = (*MetricsExtension)(nil)
	_ ext.ExecutionResumed   = (*MetricsExtension)(nil)
	_ ext.StepCompleted      = (*MetricsExtension)(nil)
	_ ext.StepFailed         = (*MetricsExtension)(nil)
	_ ext.ScheduleFired      = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle metrics for executions and steps.
// Register it as an extension to automatically track start rates,
// completions, failures, suspensions, cache hits, and schedule fires.
//
// Instruments:
//   - weft.execution.started / completed / failed / suspended / resumed
//     (Int64Counter), with a workflow attribute
//   - weft.execution.duration (Float64Histogram): wall time of completed
//     executions in seconds
//   - weft.step.completed / failed (Int64Counter), with workflow, step,
//     and state attributes
//   - weft.step.cache_hits (Int64Counter)
//   - weft.schedule.fired (Int64Counter)
type MetricsExtension struct {
	executionStarted   metric.Int64Counter
	executionCompleted metric.Int64Counter
	executionFailed    metric.Int64Counter
	executionSuspended metric.Int64Counter
	executionResumed   metric.Int64Counter
	executionDuration  metric.Float64Histogram
	stepCompleted      metric.Int64Counter
	stepFailed         metric.Int64Counter
	stepCacheHits      metric.Int64Counter
	scheduleFired      metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If none is configured, noop instruments are used and
// every hook becomes a pass-through.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.executionStarted, _ = meter.Int64Counter("weft.execution.started",
		metric.WithDescription("Total executions started"),
		metric.WithUnit("{execution}"))
	m.executionCompleted, _ = meter.Int64Counter("weft.execution.completed",
		metric.WithDescription("Total executions completed successfully"),
		metric.WithUnit("{execution}"))
	m.executionFailed, _ = meter.Int64Counter("weft.execution.failed",
		metric.WithDescription("Total executions failed terminally"),
		metric.WithUnit("{execution}"))
	m.executionSuspended, _ = meter.Int64Counter("weft.execution.suspended",
		metric.WithDescription("Total executions suspended awaiting input"),
		metric.WithUnit("{execution}"))
	m.executionResumed, _ = meter.Int64Counter("weft.execution.resumed",
		metric.WithDescription("Total suspended executions resumed"),
		metric.WithUnit("{execution}"))
	m.executionDuration, _ = meter.Float64Histogram("weft.execution.duration",
		metric.WithDescription("Wall time of completed executions in seconds"),
		metric.WithUnit("s"))
	m.stepCompleted, _ = meter.Int64Counter("weft.step.completed",
		metric.WithDescription("Total steps committed successfully"),
		metric.WithUnit("{step}"))
	m.stepFailed, _ = meter.Int64Counter("weft.step.failed",
		metric.WithDescription("Total steps failed with no retries remaining"),
		metric.WithUnit("{step}"))
	m.stepCacheHits, _ = meter.Int64Counter("weft.step.cache_hits",
		metric.WithDescription("Total steps served from the result cache"),
		metric.WithUnit("{step}"))
	m.scheduleFired, _ = meter.Int64Counter("weft.schedule.fired",
		metric.WithDescription("Total schedule-triggered executions"),
		metric.WithUnit("{fire}"))

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func workflowAttrs(exec *state.Execution) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("workflow", exec.Workflow))
}

// ── Execution lifecycle hooks ───────────────────────

// OnExecutionStarted implements ext.ExecutionStarted.
func (m *MetricsExtension) OnExecutionStarted(ctx context.Context, exec *state.Execution) error {
	m.executionStarted.Add(ctx, 1, workflowAttrs(exec))
	return nil
}

// OnExecutionCompleted implements ext.ExecutionCompleted.
func (m *MetricsExtension) OnExecutionCompleted(ctx context.Context, exec *state.Execution, elapsed time.Duration) error {
	m.executionCompleted.Add(ctx, 1, workflowAttrs(exec))
	m.executionDuration.Record(ctx, elapsed.Seconds(), workflowAttrs(exec))
	return nil
}

// OnExecutionFailed implements ext.ExecutionFailed.
func (m *MetricsExtension) OnExecutionFailed(ctx context.Context, exec *state.Execution, _ error) error {
	m.executionFailed.Add(ctx, 1, workflowAttrs(exec))
	return nil
}

// OnExecutionSuspended implements ext.ExecutionSuspended.
func (m *MetricsExtension) OnExecutionSuspended(ctx context.Context, exec *state.Execution, _ string) error {
	m.executionSuspended.Add(ctx, 1, workflowAttrs(exec))
	return nil
}

// OnExecutionResumed implements ext.ExecutionResumed.
func (m *MetricsExtension) OnExecutionResumed(ctx context.Context, exec *state.Execution) error {
	m.executionResumed.Add(ctx, 1, workflowAttrs(exec))
	return nil
}

// ── Step lifecycle hooks ────────────────────────────

// OnStepCompleted implements ext.StepCompleted.
func (m *MetricsExtension) OnStepCompleted(ctx context.Context, exec *state.Execution, ev *ext.StepEvent) error {
	attrs := metric.WithAttributes(
		attribute.String("workflow", exec.Workflow),
		attribute.String("step", ev.Step),
		attribute.String("state", string(ev.State)),
	)
	m.stepCompleted.Add(ctx, 1, attrs)
	if ev.CacheHit {
		m.stepCacheHits.Add(ctx, 1, attrs)
	}
	return nil
}

// OnStepFailed implements ext.StepFailed.
func (m *MetricsExtension) OnStepFailed(ctx context.Context, exec *state.Execution, ev *ext.StepEvent) error {
	m.stepFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", exec.Workflow),
		attribute.String("step", ev.Step),
		attribute.String("state", string(ev.State)),
	))
	return nil
}

// ── Other hooks ─────────────────────────────────────

// OnScheduleFired implements ext.ScheduleFired.
func (m *MetricsExtension) OnScheduleFired(ctx context.Context, workflow string, _ id.ExecutionID) error {
	m.scheduleFired.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow", workflow)))
	return nil
}
