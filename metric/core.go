// Package metric exposes Prometheus instrumentation for the motion
// generator and serves it over HTTP alongside a health endpoint.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the generator-level metrics shared by every arm.
type Metrics struct {
	SamplesEmitted    *prometheus.CounterVec
	PublishFailures   *prometheus.CounterVec
	TicksDropped      *prometheus.CounterVec
	ComputationFaults *prometheus.CounterVec
	CycleDuration     *prometheus.HistogramVec
	ArmsActive        prometheus.Gauge
	ServiceStatus     prometheus.Gauge

	// Broker metrics
	BrokerConnected  prometheus.Gauge
	BrokerReconnects prometheus.Counter
}

// NewMetrics creates a Metrics instance with every generator metric.
func NewMetrics() *Metrics {
	return &Metrics{
		SamplesEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "robogen",
				Subsystem: "samples",
				Name:      "emitted_total",
				Help:      "Total number of pose samples published per arm",
			},
			[]string{"arm"},
		),

		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "robogen",
				Subsystem: "samples",
				Name:      "publish_failures_total",
				Help:      "Total number of samples that could not be published per arm",
			},
			[]string{"arm"},
		),

		TicksDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "robogen",
				Subsystem: "scheduler",
				Name:      "ticks_dropped_total",
				Help:      "Total number of sample deadlines skipped because the schedule fell behind",
			},
			[]string{"arm"},
		),

		ComputationFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "robogen",
				Subsystem: "kinematics",
				Name:      "faults_total",
				Help:      "Total number of non-finite pose computations per arm",
			},
			[]string{"arm"},
		),

		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "robogen",
				Subsystem: "scheduler",
				Name:      "cycle_duration_seconds",
				Help:      "Time spent computing and publishing one sample",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"arm"},
		),

		ArmsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "robogen",
				Subsystem: "scheduler",
				Name:      "arms_active",
				Help:      "Number of arms currently being scheduled",
			},
		),

		ServiceStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "robogen",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
		),

		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "robogen",
				Subsystem: "broker",
				Name:      "connected",
				Help:      "Broker connection status (0=disconnected, 1=connected)",
			},
		),

		BrokerReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "robogen",
				Subsystem: "broker",
				Name:      "reconnects_total",
				Help:      "Total number of broker reconnections",
			},
		),
	}
}

// RecordSampleEmitted increments the emitted sample counter for an arm.
func (m *Metrics) RecordSampleEmitted(arm string) {
	m.SamplesEmitted.WithLabelValues(arm).Inc()
}

// RecordPublishFailure increments the publish failure counter for an arm.
func (m *Metrics) RecordPublishFailure(arm string) {
	m.PublishFailures.WithLabelValues(arm).Inc()
}

// RecordTicksDropped adds skipped deadlines to the drop counter for an arm.
func (m *Metrics) RecordTicksDropped(arm string, n int) {
	if n <= 0 {
		return
	}
	m.TicksDropped.WithLabelValues(arm).Add(float64(n))
}

// RecordComputationFault increments the fault counter for an arm.
func (m *Metrics) RecordComputationFault(arm string) {
	m.ComputationFaults.WithLabelValues(arm).Inc()
}

// RecordCycleDuration records the duration of one compute-and-publish cycle.
func (m *Metrics) RecordCycleDuration(arm string, d time.Duration) {
	m.CycleDuration.WithLabelValues(arm).Observe(d.Seconds())
}

// RecordArmsActive sets the active arm gauge.
func (m *Metrics) RecordArmsActive(n int) {
	m.ArmsActive.Set(float64(n))
}

// RecordServiceStatus updates the service status gauge.
func (m *Metrics) RecordServiceStatus(status int) {
	m.ServiceStatus.Set(float64(status))
}

// RecordBrokerStatus updates the broker connection gauge.
func (m *Metrics) RecordBrokerStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.BrokerConnected.Set(value)
}

// RecordBrokerReconnect increments the reconnection counter.
func (m *Metrics) RecordBrokerReconnect() {
	m.BrokerReconnects.Inc()
}
