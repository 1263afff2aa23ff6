// Package metrics exposes the netline daemon's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "netline"
	subsystem = "line"
)

// Label names for Line metrics.
const (
	labelName   = "name"
	labelKind   = "kind"
	labelFamily = "family"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Line Metrics
// -------------------------------------------------------------------------

// Collector holds all Line Prometheus metrics.
//
//   - ActiveLines tracks currently active Line objects per listener.
//   - BytesSent/BytesReceived track raw I/O volume.
//   - Connects/Disconnects count on_connected/on_disconnected firings.
//   - ReadinessPollDuration measures how long each Readable call blocks.
type Collector struct {
	// ActiveLines tracks the number of currently active Lines.
	// Incremented on connect/bind, decremented on Close.
	ActiveLines *prometheus.GaugeVec

	// BytesSent counts bytes handed to Send/SendTo.
	BytesSent *prometheus.CounterVec

	// BytesReceived counts bytes returned by Recv/RecvFrom.
	BytesReceived *prometheus.CounterVec

	// Connects counts on_connected callback firings.
	Connects *prometheus.CounterVec

	// Disconnects counts on_disconnected callback firings.
	Disconnects *prometheus.CounterVec

	// IOErrors counts Send/Recv failures, labeled by listener/kind/family.
	IOErrors *prometheus.CounterVec

	// ReadinessPollDuration observes the wall-clock time a readiness.Readable
	// call spends blocked before returning.
	ReadinessPollDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with all Line metrics registered against
// the provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
//
// All metrics are created with the "netline_line_" prefix (namespace_subsystem)
// to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.ActiveLines,
		c.BytesSent,
		c.BytesReceived,
		c.Connects,
		c.Disconnects,
		c.IOErrors,
		c.ReadinessPollDuration,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	lineLabels := []string{labelName, labelKind, labelFamily}

	return &Collector{
		ActiveLines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active",
			Help:      "Number of currently active Line objects.",
		}, lineLabels),

		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_sent_total",
			Help:      "Total bytes transmitted through Send/SendTo.",
		}, lineLabels),

		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_received_total",
			Help:      "Total bytes returned by Recv/RecvFrom.",
		}, lineLabels),

		Connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connects_total",
			Help:      "Total on_connected callback firings.",
		}, lineLabels),

		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "disconnects_total",
			Help:      "Total on_disconnected callback firings.",
		}, lineLabels),

		IOErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "io_errors_total",
			Help:      "Total Send/Recv failures.",
		}, lineLabels),

		ReadinessPollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "readiness_poll_duration_seconds",
			Help:      "Time spent blocked inside readiness.Readable per poll.",
			Buckets:   prometheus.DefBuckets,
		}, []string{labelName}),
	}
}

// -------------------------------------------------------------------------
// Line Lifecycle
// -------------------------------------------------------------------------

// RegisterLine increments the active Lines gauge and the connects counter
// for the given listener. Called from a Line's on_connected callback.
func (c *Collector) RegisterLine(name, kind, family string) {
	c.ActiveLines.WithLabelValues(name, kind, family).Inc()
	c.Connects.WithLabelValues(name, kind, family).Inc()
}

// UnregisterLine decrements the active Lines gauge and increments the
// disconnects counter. Called from a Line's on_disconnected callback.
func (c *Collector) UnregisterLine(name, kind, family string) {
	c.ActiveLines.WithLabelValues(name, kind, family).Dec()
	c.Disconnects.WithLabelValues(name, kind, family).Inc()
}

// -------------------------------------------------------------------------
// I/O Counters
// -------------------------------------------------------------------------

// AddBytesSent adds n to the bytes-sent counter for the given Line.
func (c *Collector) AddBytesSent(name, kind, family string, n int) {
	c.BytesSent.WithLabelValues(name, kind, family).Add(float64(n))
}

// AddBytesReceived adds n to the bytes-received counter for the given Line.
func (c *Collector) AddBytesReceived(name, kind, family string, n int) {
	c.BytesReceived.WithLabelValues(name, kind, family).Add(float64(n))
}

// IncIOErrors increments the I/O error counter for the given Line.
func (c *Collector) IncIOErrors(name, kind, family string) {
	c.IOErrors.WithLabelValues(name, kind, family).Inc()
}

// -------------------------------------------------------------------------
// Readiness
// -------------------------------------------------------------------------

// ObserveReadinessPoll records how long a readiness.Readable call blocked
// for the named listener's poll loop.
func (c *Collector) ObserveReadinessPoll(name string, seconds float64) {
	c.ReadinessPollDuration.WithLabelValues(name).Observe(seconds)
}
