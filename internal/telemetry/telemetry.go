// Package telemetry wires profiling, tracing, metrics and logging for the
// long running binaries.
package telemetry

import (
	"context"
	"os"
	"runtime"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/xerrors"
)

type Telemetry struct {
	Metrics *Metrics

	profiler       *pyroscope.Profiler
	traceProvider  *sdktrace.TracerProvider
	metricProvider *sdkmetric.MeterProvider
}

// Start installs the global tracer provider and text map propagator and
// registers the metrics with the default prometheus registry. Profiles are
// pushed only when PYROSCOPE_ENDPOINT is set.
func Start(ctx context.Context, applicationName string) (*Telemetry, error) {
	t := &Telemetry{}

	if endpoint := os.Getenv("PYROSCOPE_ENDPOINT"); endpoint != "" {
		runtime.SetMutexProfileFraction(1)
		runtime.SetBlockProfileRate(1)

		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: applicationName,
			ServerAddress:   endpoint,
			UploadRate:      60 * time.Second,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
				pyroscope.ProfileMutexCount,
				pyroscope.ProfileMutexDuration,
				pyroscope.ProfileBlockCount,
				pyroscope.ProfileBlockDuration,
			},
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to create profiler: %w", err)
		}
		t.profiler = profiler
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	r, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(applicationName)),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create resource: %w", err)
	}
	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to create trace exporter: %w", err)
	}
	t.traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(r),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(t.traceProvider))

	exporter, err := otelprometheus.New()
	if err != nil {
		return nil, xerrors.Errorf("failed to create exporter: %w", err)
	}
	t.metricProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(r), sdkmetric.WithReader(exporter))
	metrics, err := NewMetrics(t.metricProvider.Meter(applicationName))
	if err != nil {
		return nil, err
	}
	t.Metrics = metrics

	return t, nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.traceProvider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown trace provider: %w", err)
	}

	if err := t.metricProvider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown meter provider: %w", err)
	}

	if t.profiler != nil {
		if err := t.profiler.Stop(); err != nil {
			return xerrors.Errorf("failed to shutdown profiler: %w", err)
		}
	}

	return nil
}
