package telemetry

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "voice-translate"

// Providers owns the SDK providers installed as the OpenTelemetry globals.
type Providers struct {
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    *sdklog.LoggerProvider
}

// Setup installs tracer, meter and logger providers that export through
// exporter: "stdout" writes to w (os.Stdout when nil), "otlp" uses the
// OTEL_EXPORTER_OTLP_* environment. "none" installs nothing.
func Setup(ctx context.Context, exporter string, w io.Writer) (*Providers, error) {
	exporter = strings.ToLower(strings.TrimSpace(exporter))
	if exporter == "" || exporter == "none" {
		return &Providers{}, nil
	}
	if w == nil {
		w = os.Stdout
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
		logs    sdklog.Exporter
		err     error
	)
	switch exporter {
	case "stdout":
		if spans, err = stdouttrace.New(stdouttrace.WithWriter(w)); err != nil {
			return nil, errors.Wrap(err, "stdout span exporter")
		}
		if metrics, err = stdoutmetric.New(stdoutmetric.WithWriter(w)); err != nil {
			return nil, errors.Wrap(err, "stdout metric exporter")
		}
		if logs, err = stdoutlog.New(stdoutlog.WithWriter(w)); err != nil {
			return nil, errors.Wrap(err, "stdout log exporter")
		}
	case "otlp":
		if spans, err = otlptracehttp.New(ctx); err != nil {
			return nil, errors.Wrap(err, "otlp span exporter")
		}
		if metrics, err = otlpmetrichttp.New(ctx); err != nil {
			return nil, errors.Wrap(err, "otlp metric exporter")
		}
		if logs, err = otlploghttp.New(ctx); err != nil {
			return nil, errors.Wrap(err, "otlp log exporter")
		}
	default:
		return nil, errors.Errorf("unknown otel exporter %q", exporter)
	}

	p := &Providers{
		traces: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spans),
			sdktrace.WithResource(res),
		),
		metrics: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)),
			sdkmetric.WithResource(res),
		),
		logs: sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logs)),
			sdklog.WithResource(res),
		),
	}
	otel.SetTracerProvider(p.traces)
	otel.SetMeterProvider(p.metrics)
	global.SetLoggerProvider(p.logs)
	return p, nil
}

// Shutdown flushes and stops every installed provider. It returns the first
// error encountered.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var first error
	keep := func(err error, what string) {
		if err != nil && first == nil {
			first = errors.Wrapf(err, "shutdown %s provider", what)
		}
	}
	if p.traces != nil {
		keep(p.traces.Shutdown(ctx), "tracer")
	}
	if p.metrics != nil {
		keep(p.metrics.Shutdown(ctx), "meter")
	}
	if p.logs != nil {
		keep(p.logs.Shutdown(ctx), "logger")
	}
	return first
}
