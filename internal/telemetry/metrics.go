package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	LabelRequestsTotal   *prometheus.CounterVec
	LabelDuration        *prometheus.HistogramVec
	CourierErrors        *prometheus.CounterVec
	TrackingAnswersTotal *prometheus.CounterVec
}

// NewMetrics creates and registers metrics against reg. Production code
// passes prometheus.DefaultRegisterer; tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LabelRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_label_requests_total",
				Help: "Total label generation attempts by operation, courier, and outcome",
			},
			[]string{"operation", "courier", "status"},
		),
		LabelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fulfillment_label_duration_seconds",
				Help:    "Label generation duration in seconds by operation and courier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "courier"},
		),
		CourierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_courier_errors_total",
				Help: "Total courier API errors by courier and error kind",
			},
			[]string{"courier", "kind"},
		),
		TrackingAnswersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_tracking_answers_total",
				Help: "Tracking responses by data source (live, cached, unavailable)",
			},
			[]string{"source"},
		),
	}
}

// RecordLabelRequest records a label generation attempt.
func (m *Metrics) RecordLabelRequest(operation, courier, status string, duration float64) {
	m.LabelRequestsTotal.WithLabelValues(operation, courier, status).Inc()
	m.LabelDuration.WithLabelValues(operation, courier).Observe(duration)
}

// RecordCourierError records a courier API error.
func (m *Metrics) RecordCourierError(courier, kind string) {
	m.CourierErrors.WithLabelValues(courier, kind).Inc()
}

// RecordTracking records which source answered a tracking query.
func (m *Metrics) RecordTracking(source string) {
	m.TrackingAnswersTotal.WithLabelValues(source).Inc()
}
