package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in).Level(); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.Enqueued(context.Background())
	m.PendingDelta(context.Background(), 1)

	m = NewPipelineMetrics(nil)
	m.Processed(context.Background(), "ok")
	m.StageDuration(context.Background(), "transcription", 0.25)
}

func TestHTTPClientTimeout(t *testing.T) {
	c := HTTPClient("deepgram", 3*time.Second)
	if c.Timeout != 3*time.Second {
		t.Fatalf("expected timeout 3s, got %s", c.Timeout)
	}
	if c.Transport == nil {
		t.Fatalf("expected instrumented transport")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSetupStdoutExportsSpansAndLogs(t *testing.T) {
	var out lockedBuffer
	p, err := Setup(context.Background(), "stdout", &out)
	if err != nil {
		t.Fatalf("Setup() returned error: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "chunk.test")
	span.End()
	NewLogger("info", "otel").Info("speaker joined")

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() returned error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "chunk.test") {
		t.Fatalf("expected the span to be exported, got %q", got)
	}
	if !strings.Contains(got, "speaker joined") {
		t.Fatalf("expected the log record to be exported, got %q", got)
	}
}

func TestSetupNoneAndUnknown(t *testing.T) {
	p, err := Setup(context.Background(), "none", nil)
	if err != nil {
		t.Fatalf("Setup(none) returned error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() of empty providers returned error: %v", err)
	}
	if _, err := Setup(context.Background(), "zipkin", nil); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}
