// Package telemetry holds the process-wide logger, tracer and meter plus the
// instrumented HTTP client used for every provider call.
package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/mrsingh-rishi/voice-translate"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
)

// Tracer returns the module tracer.
func Tracer() trace.Tracer { return tracer }

// Meter returns the module meter.
func Meter() metric.Meter { return meter }

// NewLogger builds the process logger. exporter "otel" routes records through
// the OpenTelemetry log bridge, anything else writes text to stdout.
func NewLogger(level, exporter string) *slog.Logger {
	if strings.EqualFold(strings.TrimSpace(exporter), "otel") {
		return otelslog.NewLogger(scopeName)
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HTTPClient returns a client whose transport records a span per provider
// request, named after the provider.
func HTTPClient(provider string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return fmt.Sprintf("%s %s %s", provider, r.Method, r.URL.Path)
			}),
		),
	}
}
