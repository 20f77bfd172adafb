package router

import (
	fvmetrics "github.com/clones-ai/factoryvault/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds router-level metrics. A nil *Metrics disables recording.
type Metrics struct {
	registry *fvmetrics.ComponentRegistry

	BatchesTotal prometheus.Counter
	BatchSize    prometheus.Histogram
	ClaimsTotal  *prometheus.CounterVec
	BatchOutcome *prometheus.CounterVec
}

// NewMetrics registers router metrics on the global registry. Call at most
// once per process.
func NewMetrics() *Metrics {
	reg := fvmetrics.NewComponentRegistry("router", "")

	return &Metrics{
		registry: reg,

		BatchesTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "batches_total",
			Help: "Total number of processed claim batches",
		}),

		BatchSize: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_size",
			Help:    "Number of claims per batch",
			Buckets: fvmetrics.CountBuckets,
		}),

		ClaimsTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_total",
			Help: "Total number of batch claim items by outcome",
		}, []string{"outcome"}),

		BatchOutcome: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_items_total",
			Help: "Per-batch successful/failed item counts",
		}, []string{"result"}),
	}
}

func (m *Metrics) RecordBatch(size, successful, failed int) {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
	m.BatchSize.Observe(float64(size))
	m.BatchOutcome.WithLabelValues("successful").Add(float64(successful))
	m.BatchOutcome.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) RecordClaim(outcome string) {
	if m == nil {
		return
	}
	m.ClaimsTotal.WithLabelValues(outcome).Inc()
}
