// Package metrics exposes the Prometheus instruments of treenet builds.
package metrics

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "treenet"

type metricDefinition struct {
	Name string
	Help string
	Type string
}

// Metrics holds the instruments updated by the inference service. Each value
// owns its registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory
	defs     []metricDefinition

	BuildsTotal       *prometheus.CounterVec
	BuildDuration     prometheus.Histogram
	SubnetsInserted   prometheus.Counter
	SubnetsDuplicate  prometheus.Counter
	NeighborhoodMerge prometheus.Counter
	NodesPruned       prometheus.Counter
	Neighborhoods     prometheus.Gauge
	Routers           prometheus.Gauge
	AliasInterfaces   *prometheus.CounterVec
	CounterTypes      *prometheus.CounterVec
	RDNSLookups       *prometheus.CounterVec
}

// New creates the instruments on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := &Metrics{registry: reg, factory: promauto.With(reg)}

	m.BuildsTotal = m.newCounterVec(prometheus.CounterOpts{
		Name: "builds_total",
		Help: "Number of tree builds, by outcome",
	}, []string{"outcome"})
	m.BuildDuration = m.newHistogram(prometheus.HistogramOpts{
		Name:    "build_duration_seconds",
		Help:    "Duration of a full build: tree, alias resolution and projection",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	m.SubnetsInserted = m.newCounter(prometheus.CounterOpts{
		Name: "subnets_inserted_total",
		Help: "Number of subnets inserted in a tree",
	})
	m.SubnetsDuplicate = m.newCounter(prometheus.CounterOpts{
		Name: "subnets_duplicate_total",
		Help: "Number of subnets skipped because their prefix was already inserted",
	})
	m.NeighborhoodMerge = m.newCounter(prometheus.CounterOpts{
		Name: "neighborhood_merges_total",
		Help: "Number of same-depth neighborhoods merged during insertion",
	})
	m.NodesPruned = m.newCounter(prometheus.CounterOpts{
		Name: "nodes_pruned_total",
		Help: "Number of tree nodes removed after a merge",
	})
	m.Neighborhoods = m.newGauge(prometheus.GaugeOpts{
		Name: "neighborhoods",
		Help: "Number of neighborhoods in the last built tree",
	})
	m.Routers = m.newGauge(prometheus.GaugeOpts{
		Name: "routers",
		Help: "Number of routers inferred in the last build",
	})
	m.AliasInterfaces = m.newCounterVec(prometheus.CounterOpts{
		Name: "alias_interfaces_total",
		Help: "Number of interfaces assigned to a router, by alias method",
	}, []string{"method"})
	m.CounterTypes = m.newCounterVec(prometheus.CounterOpts{
		Name: "ipid_counters_total",
		Help: "Number of interfaces classified, by IP-ID counter type",
	}, []string{"type"})
	m.RDNSLookups = m.newCounterVec(prometheus.CounterOpts{
		Name: "rdns_lookups_total",
		Help: "Number of reverse DNS lookups, by outcome",
	}, []string{"outcome"})
	return m
}

func (m *Metrics) record(name, help, kind string) {
	m.defs = append(m.defs, metricDefinition{Name: namespace + "_" + name, Help: help, Type: kind})
}

func (m *Metrics) newCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = namespace
	m.record(opts.Name, opts.Help, "counter")
	return m.factory.NewCounter(opts)
}

func (m *Metrics) newCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	opts.Namespace = namespace
	m.record(opts.Name, opts.Help, "counter")
	return m.factory.NewCounterVec(opts, labelNames)
}

func (m *Metrics) newGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = namespace
	m.record(opts.Name, opts.Help, "gauge")
	return m.factory.NewGauge(opts)
}

func (m *Metrics) newHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = namespace
	m.record(opts.Name, opts.Help, "histogram")
	return m.factory.NewHistogram(opts)
}

// Registry returns the registry holding every instrument
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Documentation renders a markdown table per metric
func (m *Metrics) Documentation() string {
	var sb strings.Builder
	for _, d := range m.defs {
		fmt.Fprintf(&sb, `
### %s
| **Name** | %s |
|:---|:---|
| **Description** | %s |
| **Type** | %s |

`, d.Name, d.Name, d.Help, d.Type)
	}
	return sb.String()
}
