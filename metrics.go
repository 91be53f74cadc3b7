package edoc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusOK      = "ok"
	statusInvalid = "invalid"
	statusError   = "error"
)

// Metrics collects per-collection session statistics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Documents  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edoc_operations_total",
				Help: "Total number of session operations",
			},
			[]string{"collection", "op", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edoc_operation_duration_seconds",
				Help:    "Latency of session operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection", "op"},
		),
		Documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edoc_documents_read_total",
				Help: "Total number of documents decoded from query results",
			},
			[]string{"collection"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Duration, m.Documents)
	}
	return m
}

func (m *Metrics) observe(collection, op, status string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(collection, op, status).Inc()
	m.Duration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) documentRead(collection string) {
	if m == nil {
		return
	}
	m.Documents.WithLabelValues(collection).Inc()
}
