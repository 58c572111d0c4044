package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// TestMetrics_Usable verifies that all metrics can be used without panic,
// ensuring label dimensions match usage across client, history, storage and widget.
func TestMetrics_Usable(t *testing.T) {
	WeatherAPICallsTotal.WithLabelValues("success").Inc()
	WeatherAPICallsTotal.WithLabelValues("client_error").Inc()
	WeatherAPIDuration.WithLabelValues("success").Observe(0.1)
	RateLimitWaitsTotal.Inc()
	WeatherLookupsTotal.WithLabelValues("submit", "success").Inc()
	WeatherLookupsTotal.WithLabelValues("startup", "not_found").Inc()
	HistoryWritesTotal.Inc()
	HistoryExpiredPurgedTotal.Add(2)
	HistoryEvictionsTotal.Inc()
	HistoryCorruptTotal.Inc()
	StorageOperationDuration.WithLabelValues("file", "get", "success").Observe(0.001)
	StorageErrorsTotal.WithLabelValues("redis", "set").Inc()
}

// TestWriteTextfile verifies the registry is written in text exposition format.
func TestWriteTextfile(t *testing.T) {
	HistoryWritesTotal.Inc()
	path := filepath.Join(t.TempDir(), "weather.prom")

	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "historyWritesTotal") {
		t.Error("textfile should contain historyWritesTotal")
	}
}

func TestFlushTelemetry_WritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.prom")
	if err := FlushTelemetry(context.Background(), zap.NewNop(), path); err != nil {
		t.Fatalf("FlushTelemetry() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("textfile not written: %v", err)
	}
}

func TestFlushTelemetry_NoTextfile(t *testing.T) {
	if err := FlushTelemetry(context.Background(), nil, ""); err != nil {
		t.Errorf("FlushTelemetry() error = %v, want nil", err)
	}
}
