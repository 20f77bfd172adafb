package factory

import (
	fvmetrics "github.com/clones-ai/factoryvault/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds factory-level metrics. A nil *Metrics disables recording.
type Metrics struct {
	registry *fvmetrics.ComponentRegistry

	PoolsCreated prometheus.Counter
	Rotations    *prometheus.CounterVec
	VaultsActive prometheus.Gauge
}

// NewMetrics registers factory metrics on the global registry. Call at most
// once per process.
func NewMetrics() *Metrics {
	reg := fvmetrics.NewComponentRegistry("factory", "")

	return &Metrics{
		registry: reg,

		PoolsCreated: reg.NewCounter(prometheus.CounterOpts{
			Name: "pools_created_total",
			Help: "Total number of vaults deployed",
		}),

		Rotations: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "publisher_rotations_total",
			Help: "Total number of publisher rotation transitions",
		}, []string{"action"}),

		VaultsActive: reg.NewGauge(prometheus.GaugeOpts{
			Name: "vaults_active",
			Help: "Number of vaults deployed by this factory",
		}),
	}
}

func (m *Metrics) RecordPoolCreated() {
	if m == nil {
		return
	}
	m.PoolsCreated.Inc()
	m.VaultsActive.Inc()
}

func (m *Metrics) RecordRotation(action string) {
	if m == nil {
		return
	}
	m.Rotations.WithLabelValues(action).Inc()
}
