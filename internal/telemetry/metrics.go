package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

type Outcome string

const (
	OutcomeMatch    Outcome = "match"
	OutcomeMismatch Outcome = "mismatch"
	OutcomeError    Outcome = "error"
)

// Metrics holds the instruments shared by the binaries.
// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
// https://github.com/prometheus/client_golang/blob/v1.20.4/prometheus/metric.go#L200
type Metrics struct {
	HTTPRequestsDurationMicroSeconds metric.Int64Histogram
	comparisons                      metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	httpRequestsDurationMicroSeconds, err := meter.Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}
	comparisons, err := meter.Int64Counter("snapshot_comparisons_total",
		metric.WithDescription("Image comparisons by outcome."),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create counter: %w", err)
	}
	return &Metrics{
		HTTPRequestsDurationMicroSeconds: httpRequestsDurationMicroSeconds,
		comparisons:                      comparisons,
	}, nil
}

func (m *Metrics) RecordComparison(ctx context.Context, outcome Outcome) {
	m.comparisons.Add(ctx, 1, metric.WithAttributes(attribute.Key("result").String(string(outcome))))
}
