// Package metrics provides the process-global prometheus registry and a
// per-component registration helper used by every instrumented package.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "factoryvault"

var (
	globalOnce     sync.Once
	globalRegistry *prometheus.Registry
)

// GetRegistry returns the process-global registry, creating it on first use
// with the standard Go runtime and process collectors attached.
func GetRegistry() *prometheus.Registry {
	globalOnce.Do(func() {
		globalRegistry = prometheus.NewRegistry()
		globalRegistry.MustRegister(collectors.NewGoCollector())
		globalRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return globalRegistry
}

// CountBuckets is a shared histogram bucket preset for discrete counts
// (batch sizes, item counts).
var CountBuckets = []float64{1, 2, 5, 10, 20, 50, 100}

// ComponentRegistry namespaces metrics per component and registers them on the
// global registry.
type ComponentRegistry struct {
	subsystem string
	registry  *prometheus.Registry
}

// NewComponentRegistry creates a registry helper for one component. An empty
// subsystem produces namespace-level metric names.
func NewComponentRegistry(subsystem string, _ string) *ComponentRegistry {
	return &ComponentRegistry{
		subsystem: subsystem,
		registry:  GetRegistry(),
	}
}

func (r *ComponentRegistry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	c := prometheus.NewCounter(opts)
	r.registry.MustRegister(c)
	return c
}

func (r *ComponentRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	c := prometheus.NewCounterVec(opts, labels)
	r.registry.MustRegister(c)
	return c
}

func (r *ComponentRegistry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	g := prometheus.NewGauge(opts)
	r.registry.MustRegister(g)
	return g
}

func (r *ComponentRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	g := prometheus.NewGaugeVec(opts, labels)
	r.registry.MustRegister(g)
	return g
}

func (r *ComponentRegistry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = namespace
	opts.Subsystem = r.subsystem
	h := prometheus.NewHistogram(opts)
	r.registry.MustRegister(h)
	return h
}
