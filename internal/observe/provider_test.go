package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	otellog "go.opentelemetry.io/otel/log"
)

// InitProvider registers a Prometheus collector globally, so it runs once.
func TestInitProviderRegistersGlobalProviders(t *testing.T) {
	var logs bytes.Buffer
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion: "test",
		LogWriter:      &logs,
		LogLevel:       slog.LevelInfo,
	})
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}

	counter, err := otel.Meter("observe-test").Int64Counter("observe_test_total")
	if err != nil {
		t.Fatalf("failed to create counter: %v", err)
	}
	counter.Add(context.Background(), 1)

	logger := otelslog.NewLogger("observe-test")
	logger.Debug("too quiet to be written")
	logger.Warn("segment failed", "sequence", 1)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	written := logs.String()
	if !strings.Contains(written, "segment failed") {
		t.Fatalf("expected the warning to reach the log writer, got %q", written)
	}
	if strings.Contains(written, "too quiet to be written") {
		t.Fatalf("expected debug records below the level to be dropped, got %q", written)
	}
}

func TestSeverityOfMatchesSlogLevels(t *testing.T) {
	testCases := []struct {
		level    slog.Level
		expected otellog.Severity
	}{
		{slog.LevelDebug, otellog.SeverityDebug},
		{slog.LevelInfo, otellog.SeverityInfo},
		{slog.LevelWarn, otellog.SeverityWarn},
		{slog.LevelError, otellog.SeverityError},
	}
	for _, testCase := range testCases {
		if got := severityOf(testCase.level); got != testCase.expected {
			t.Fatalf("level %s: expected severity %d, got %d", testCase.level, testCase.expected, got)
		}
	}
}
