package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTriangleMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "triangles_runs_total",
			Help: "Total number of triangle-count runs by outcome",
		},
		[]string{"strategy", "status"},
	)

	r.RunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triangles_run_duration_seconds",
			Help:    "Triangle-count run duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"strategy"},
	)

	r.NodesProcessed = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "triangles_nodes_processed_total",
			Help: "Total number of nodes processed by successful runs",
		},
		[]string{"strategy"},
	)

	r.LastTriangleCount = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "triangles_last_count",
			Help: "Global triangle count of the last successful run",
		},
	)

	r.LastAvgCoefficient = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "triangles_last_average_coefficient",
			Help: "Average local clustering coefficient of the last successful run",
		},
	)

	r.AllocatedBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "triangles_allocated_bytes",
			Help: "Bytes currently reserved by triangle-count buffers",
		},
	)

	r.RunsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "triangles_runs_in_flight",
			Help: "Number of triangle-count runs currently computing",
		},
	)
}
