package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.RunsTotal == nil {
		t.Error("RunsTotal not initialized")
	}
	if r.RunDuration == nil {
		t.Error("RunDuration not initialized")
	}
	if r.AllocatedBytes == nil {
		t.Error("AllocatedBytes not initialized")
	}
	if r.UptimeSeconds == nil {
		t.Error("UptimeSeconds not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()

	if r1 != r2 {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordRun(t *testing.T) {
	r := NewRegistry()

	r.RecordRun("compact", StatusSuccess, 20*time.Millisecond, 100, 12, 0.25)
	r.RecordRun("compact", StatusSuccess, 30*time.Millisecond, 50, 4, 0.5)
	r.RecordRun("compact", StatusCancelled, 5*time.Millisecond, 100, 0, 0)

	success, err := r.RunsTotal.GetMetricWithLabelValues("compact", StatusSuccess)
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if got := counterValue(t, success); got != 2 {
		t.Errorf("success runs = %v, want 2", got)
	}

	cancelled, _ := r.RunsTotal.GetMetricWithLabelValues("compact", StatusCancelled)
	if got := counterValue(t, cancelled); got != 1 {
		t.Errorf("cancelled runs = %v, want 1", got)
	}

	nodes, _ := r.NodesProcessed.GetMetricWithLabelValues("compact")
	if got := counterValue(t, nodes); got != 150 {
		t.Errorf("nodes processed = %v, want 150 (cancelled runs excluded)", got)
	}

	if got := gaugeValue(t, r.LastTriangleCount); got != 4 {
		t.Errorf("last count = %v, want 4", got)
	}
	if got := gaugeValue(t, r.LastAvgCoefficient); got != 0.5 {
		t.Errorf("last average coefficient = %v, want 0.5", got)
	}
}

func TestRunStarted(t *testing.T) {
	r := NewRegistry()

	done := r.RunStarted()
	if got := gaugeValue(t, r.RunsInFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	done()
	if got := gaugeValue(t, r.RunsInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestGaugeMetrics(t *testing.T) {
	r := NewRegistry()

	r.SetAllocatedBytes(4096)
	r.UpdateSystemMetrics()

	if got := gaugeValue(t, r.AllocatedBytes); got != 4096 {
		t.Errorf("AllocatedBytes = %v, want 4096", got)
	}
	if got := gaugeValue(t, r.GoRoutines); got < 1 {
		t.Errorf("GoRoutines = %v, want >= 1", got)
	}
	if got := gaugeValue(t, r.MemorySysBytes); got <= 0 {
		t.Errorf("MemorySysBytes = %v, want > 0", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.RecordRun("standard", StatusSuccess, time.Millisecond, 4, 1, 0.58)

	path := filepath.Join(t.TempDir(), "triangles.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	text := string(data)
	for _, name := range []string{"triangles_runs_total", "triangles_last_count", "triangles_goroutines"} {
		if !strings.Contains(text, name) {
			t.Errorf("textfile missing %s", name)
		}
	}
}

func TestMetricsRegistration(t *testing.T) {
	r := NewRegistry()
	r.RecordRun("standard", StatusFailed, time.Millisecond, 0, 0, 0)

	families, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"triangles_runs_total", "triangles_run_duration_seconds", "triangles_allocated_bytes"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
