// Package observability provides the Prometheus metrics surface for the
// detection pipeline and the report workflow.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all Prometheus metrics for the application. It is a
// single Collector registered once at startup.
type Metrics struct {
	DetectionCounter  *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	InferenceErrors   *prometheus.CounterVec

	ReportsCreated  *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	EmailFailures   prometheus.Counter
	ModelReadyGauge *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers the application metrics on the given
// registry.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.DetectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildsight_detections_total",
			Help: "Total number of detections partitioned by species label.",
		},
		[]string{"species"},
	)
	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wildsight_inference_duration_seconds",
			Help:    "Time taken for one model invocation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"model"},
	)
	m.InferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildsight_inference_errors_total",
			Help: "Total number of failed model invocations.",
		},
		[]string{"model"},
	)
	m.ReportsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildsight_reports_created_total",
			Help: "Total number of reports created, partitioned by source kind.",
		},
		[]string{"source"},
	)
	m.Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildsight_report_transitions_total",
			Help: "Total number of report status transitions, partitioned by new status.",
		},
		[]string{"status"},
	)
	m.Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildsight_notifications_total",
			Help: "Total number of user notifications created, partitioned by type.",
		},
		[]string{"type"},
	)
	m.EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wildsight_email_failures_total",
			Help: "Total number of failed notification email deliveries.",
		},
	)
	m.ModelReadyGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wildsight_model_ready",
			Help: "Whether a model is loaded and ready (1) or unavailable (0).",
		},
		[]string{"model"},
	)
}

// RecordDetection counts one retained detection.
func (m *Metrics) RecordDetection(species string) {
	m.DetectionCounter.WithLabelValues(species).Inc()
}

// RecordInference records one model invocation outcome.
func (m *Metrics) RecordInference(model string, durationSeconds float64, err error) {
	if err != nil {
		m.InferenceErrors.WithLabelValues(model).Inc()
		return
	}
	m.InferenceDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordReport counts one created report.
func (m *Metrics) RecordReport(source string) {
	m.ReportsCreated.WithLabelValues(source).Inc()
}

// RecordTransition counts one status transition.
func (m *Metrics) RecordTransition(newStatus string) {
	m.Transitions.WithLabelValues(newStatus).Inc()
}

// RecordNotification counts one created notification and, when delivery
// failed, one email failure.
func (m *Metrics) RecordNotification(notificationType string, emailFailed bool) {
	m.Notifications.WithLabelValues(notificationType).Inc()
	if emailFailed {
		m.EmailFailures.Inc()
	}
}

// SetModelReady publishes model availability.
func (m *Metrics) SetModelReady(model string, ready bool) {
	v := 0.0
	if ready {
		v = 1.0
	}
	m.ModelReadyGauge.WithLabelValues(model).Set(v)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionCounter.Describe(ch)
	m.InferenceDuration.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.ReportsCreated.Describe(ch)
	m.Transitions.Describe(ch)
	m.Notifications.Describe(ch)
	ch <- m.EmailFailures.Desc()
	m.ModelReadyGauge.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionCounter.Collect(ch)
	m.InferenceDuration.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.ReportsCreated.Collect(ch)
	m.Transitions.Collect(ch)
	m.Notifications.Collect(ch)
	ch <- m.EmailFailures
	m.ModelReadyGauge.Collect(ch)
}
