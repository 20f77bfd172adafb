package vault

import (
	fvmetrics "github.com/clones-ai/factoryvault/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds vault-level metrics, shared by every vault instance a factory
// deploys. A nil *Metrics disables recording.
type Metrics struct {
	registry *fvmetrics.ComponentRegistry

	ClaimsPaid     prometheus.Counter
	ClaimsRejected *prometheus.CounterVec
	Deposits       prometheus.Counter
	Sweeps         prometheus.Counter
}

// NewMetrics registers vault metrics on the global registry. Call at most once
// per process.
func NewMetrics() *Metrics {
	reg := fvmetrics.NewComponentRegistry("vault", "")

	return &Metrics{
		registry: reg,

		ClaimsPaid: reg.NewCounter(prometheus.CounterOpts{
			Name: "claims_paid_total",
			Help: "Total number of successfully paid claims",
		}),

		ClaimsRejected: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_rejected_total",
			Help: "Total number of rejected claims",
		}, []string{"reason"}),

		Deposits: reg.NewCounter(prometheus.CounterOpts{
			Name: "deposits_total",
			Help: "Total number of vault deposits",
		}),

		Sweeps: reg.NewCounter(prometheus.CounterOpts{
			Name: "emergency_sweeps_total",
			Help: "Total number of executed emergency sweeps",
		}),
	}
}

func (m *Metrics) RecordClaimPaid() {
	if m == nil {
		return
	}
	m.ClaimsPaid.Inc()
}

func (m *Metrics) RecordClaimRejected(reason string) {
	if m == nil {
		return
	}
	m.ClaimsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordDeposit() {
	if m == nil {
		return
	}
	m.Deposits.Inc()
}

func (m *Metrics) RecordSweep() {
	if m == nil {
		return
	}
	m.Sweeps.Inc()
}
