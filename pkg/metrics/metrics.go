package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	r.initTriangleMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// RecordRun records a finished triangle-count run
func (r *Registry) RecordRun(strategy, status string, duration time.Duration, nodes int, triangles int64, avgCoefficient float64) {
	r.RunsTotal.WithLabelValues(strategy, status).Inc()
	r.RunDuration.WithLabelValues(strategy).Observe(duration.Seconds())

	if status != StatusSuccess {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.NodesProcessed.WithLabelValues(strategy).Add(float64(nodes))
	r.LastTriangleCount.Set(float64(triangles))
	r.LastAvgCoefficient.Set(avgCoefficient)
}

// RunStarted marks a run as in flight; the returned func marks it done
func (r *Registry) RunStarted() func() {
	r.RunsInFlight.Inc()
	return r.RunsInFlight.Dec
}

// SetAllocatedBytes publishes the bytes held by auxiliary buffers
func (r *Registry) SetAllocatedBytes(bytes int64) {
	r.AllocatedBytes.Set(float64(bytes))
}

// UpdateSystemMetrics samples uptime, goroutines and memory
func (r *Registry) UpdateSystemMetrics() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r.UptimeSeconds.Set(time.Since(r.startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(mem.Alloc))
	r.MemorySysBytes.Set(float64(mem.Sys))
}

// WriteTextfile writes every metric in the Prometheus text format, for
// pickup by a node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	r.UpdateSystemMetrics()
	return prometheus.WriteToTextfile(path, r.registry)
}
