package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bvp/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	valuesStored *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastValue    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder registered on reg.
// A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		valuesStored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bvp_values_stored_total",
				Help: "Total number of timed values sent to a backend",
			},
			[]string{"backend", "kind"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bvp_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bvp_last_value",
				Help: "Last ingested value per asset",
			},
			[]string{"kind", "asset"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bvp_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordValuesStored counts n values of one kind sent to a backend.
func (r *Recorder) RecordValuesStored(backend string, kind models.ValueKind, n int) {
	r.valuesStored.WithLabelValues(backend, string(kind)).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastValue records the last value seen for an asset.
func (r *Recorder) RecordLastValue(kind models.ValueKind, asset string, value float64) {
	r.lastValue.WithLabelValues(string(kind), asset).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
