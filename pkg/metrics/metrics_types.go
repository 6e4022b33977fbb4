package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Triangle-count runs
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	NodesProcessed     *prometheus.CounterVec
	LastTriangleCount  prometheus.Gauge
	LastAvgCoefficient prometheus.Gauge
	AllocatedBytes     prometheus.Gauge
	RunsInFlight       prometheus.Gauge

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry  *prometheus.Registry
	startTime time.Time
	mu        sync.RWMutex
}

// Run status label values
const (
	StatusSuccess   = "success"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)
