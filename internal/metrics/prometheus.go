// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lock modes.
const (
	ModeRead  = "read"
	ModeWrite = "write"
)

// Acquisition results.
const (
	ResultAcquired    = "acquired"
	ResultTimeout     = "timeout"
	ResultInterrupted = "interrupted"
	ResultFailed      = "failed"
	ResultReentered   = "reentered"
)

const namespace = "stubguard"

// Metrics holds the lock coordination collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	reg prometheus.Registerer

	// Acquisitions tracks lock acquisitions by mode and result.
	Acquisitions *prometheus.CounterVec

	// WaitDuration tracks time spent acquiring locks by mode.
	WaitDuration *prometheus.HistogramVec

	// WritePasses tracks the number of passes per write acquisition.
	WritePasses prometheus.Histogram

	// Rollbacks tracks write acquisitions that released a partial set.
	Rollbacks prometheus.Counter

	// LocksCreated tracks registry entries created.
	LocksCreated prometheus.Counter

	// LocksEvicted tracks registry entries evicted after their object was collected.
	LocksEvicted prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Acquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_acquisitions_total",
				Help:      "Total lock acquisitions by mode and result",
			},
			[]string{"mode", "result"},
		),
		WaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lock_wait_seconds",
				Help:      "Time spent acquiring locks in seconds",
				Buckets:   []float64{.0001, .001, .01, .1, .5, 1, 2, 5, 10, 15},
			},
			[]string{"mode"},
		),
		WritePasses: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lock_write_passes",
				Help:      "Acquisition passes per multi-object write lock request",
				Buckets:   []float64{1, 2, 3, 5, 8, 13},
			},
		),
		Rollbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_rollbacks_total",
				Help:      "Total write acquisitions rolled back",
			},
		),
		LocksCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_locks_created_total",
				Help:      "Total locks created in the registry",
			},
		),
		LocksEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_locks_evicted_total",
				Help:      "Total registry locks evicted after their object was collected",
			},
		),
	}
}

// RegisterRegistrySize exposes the live registry entry count as a gauge.
func (m *Metrics) RegisterRegistrySize(size func() int) error {
	if m == nil {
		return nil
	}
	return m.reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Current number of locks in the registry",
		},
		func() float64 { return float64(size()) },
	))
}

// RecordAcquisition records a lock acquisition outcome.
func (m *Metrics) RecordAcquisition(mode, result string) {
	if m == nil {
		return
	}
	m.Acquisitions.WithLabelValues(mode, result).Inc()
}

// ObserveWait records time spent acquiring a lock.
func (m *Metrics) ObserveWait(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.WaitDuration.WithLabelValues(mode).Observe(seconds)
}

// ObservePasses records the passes one write acquisition took.
func (m *Metrics) ObservePasses(passes int) {
	if m == nil {
		return
	}
	m.WritePasses.Observe(float64(passes))
}

// RecordRollback records a rolled back write acquisition.
func (m *Metrics) RecordRollback() {
	if m == nil {
		return
	}
	m.Rollbacks.Inc()
}

// RecordLockCreated records a registry entry creation.
func (m *Metrics) RecordLockCreated() {
	if m == nil {
		return
	}
	m.LocksCreated.Inc()
}

// RecordLockEvicted records a registry entry eviction.
func (m *Metrics) RecordLockEvicted() {
	if m == nil {
		return
	}
	m.LocksEvicted.Inc()
}

// RegisterMetricsEndpoint registers the /metrics endpoint on a Gin router.
func RegisterMetricsEndpoint(router *gin.Engine, gatherer prometheus.Gatherer) {
	RegisterMetricsEndpointWithPath(router, "/metrics", gatherer)
}

// RegisterMetricsEndpointWithPath registers the metrics endpoint at a custom path.
func RegisterMetricsEndpointWithPath(router *gin.Engine, path string, gatherer prometheus.Gatherer) {
	router.GET(path, MetricsHandler(gatherer))
}

// MetricsHandler returns the Prometheus HTTP handler for gatherer.
func MetricsHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
