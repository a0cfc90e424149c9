package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics are the dispatcher counters. Instrument creation failures
// fall back to no-op instruments so callers never nil-check.
type PipelineMetrics struct {
	chunksEnqueued  metric.Int64Counter
	chunksProcessed metric.Int64Counter
	chunksRejected  metric.Int64Counter
	fallbacks       metric.Int64Counter
	pending         metric.Int64UpDownCounter
	stageDuration   metric.Float64Histogram
	deliveryErrors  metric.Int64Counter
}

// NewPipelineMetrics registers the dispatcher instruments on the module meter.
func NewPipelineMetrics(logger *slog.Logger) *PipelineMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	m := &PipelineMetrics{}
	var err error
	if m.chunksEnqueued, err = meter.Int64Counter("pipeline.chunks.enqueued",
		metric.WithDescription("Audio chunks accepted by the dispatcher")); err != nil {
		logger.Warn("failed to create metric", "metric", "pipeline.chunks.enqueued", "error", err)
	}
	if m.chunksProcessed, err = meter.Int64Counter("pipeline.chunks.processed",
		metric.WithDescription("Audio chunks that completed the pipeline")); err != nil {
		logger.Warn("failed to create metric", "metric", "pipeline.chunks.processed", "error", err)
	}
	if m.chunksRejected, err = meter.Int64Counter("pipeline.chunks.rejected",
		metric.WithDescription("Audio chunks refused by the dispatcher")); err != nil {
		logger.Warn("failed to create metric", "metric", "pipeline.chunks.rejected", "error", err)
	}
	if m.fallbacks, err = meter.Int64Counter("pipeline.stage.fallbacks",
		metric.WithDescription("Per-stage fallbacks applied after provider failures")); err != nil {
		logger.Warn("failed to create metric", "metric", "pipeline.stage.fallbacks", "error", err)
	}
	if m.pending, err = meter.Int64UpDownCounter("pipeline.chunks.pending",
		metric.WithDescription("Audio chunks waiting in speaker backlogs")); err != nil {
		logger.Warn("failed to create metric", "metric", "pipeline.chunks.pending", "error", err)
	}
	if m.stageDuration, err = meter.Float64Histogram("pipeline.stage.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of individual pipeline stages")); err != nil {
		logger.Warn("failed to create metric", "metric", "pipeline.stage.duration", "error", err)
	}
	if m.deliveryErrors, err = meter.Int64Counter("broadcast.delivery.errors",
		metric.WithDescription("Room deliveries that failed, per sink")); err != nil {
		logger.Warn("failed to create metric", "metric", "broadcast.delivery.errors", "error", err)
	}
	return m
}

func (m *PipelineMetrics) Enqueued(ctx context.Context) {
	if m != nil && m.chunksEnqueued != nil {
		m.chunksEnqueued.Add(ctx, 1)
	}
}

func (m *PipelineMetrics) Processed(ctx context.Context, outcome string) {
	if m != nil && m.chunksProcessed != nil {
		m.chunksProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m *PipelineMetrics) Rejected(ctx context.Context, reason string) {
	if m != nil && m.chunksRejected != nil {
		m.chunksRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func (m *PipelineMetrics) Fallback(ctx context.Context, stage string) {
	if m != nil && m.fallbacks != nil {
		m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
}

func (m *PipelineMetrics) PendingDelta(ctx context.Context, delta int64) {
	if m != nil && m.pending != nil {
		m.pending.Add(ctx, delta)
	}
}

func (m *PipelineMetrics) StageDuration(ctx context.Context, stage string, seconds float64) {
	if m != nil && m.stageDuration != nil {
		m.stageDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
	}
}

func (m *PipelineMetrics) DeliveryFailed(ctx context.Context, sink string) {
	if m != nil && m.deliveryErrors != nil {
		m.deliveryErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
	}
}
