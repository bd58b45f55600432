// Package metrics exposes Prometheus instrumentation for the condition service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rulekeeper"

// Evaluation outcomes used as the "result" label.
const (
	ResultTrue  = "true"
	ResultFalse = "false"
	ResultError = "error"
)

// Cache layers used as the "cache" label.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Tree write operations used as the "op" label.
const (
	OpSave   = "save"
	OpDelete = "delete"
)

// Metrics holds all collectors, registered on a private registry so tests
// and multiple instances never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	treeWrites         *prometheus.CounterVec
	variableReloads    *prometheus.CounterVec
	variables          prometheus.Gauge
}

// New creates and registers the collectors. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Condition set evaluations by result",
			},
			[]string{"result"},
		),
		evaluationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Condition set evaluation latency",
				Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Condition tree cache hits by cache layer",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Condition tree cache misses by cache layer",
			},
			[]string{"cache"},
		),
		treeWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tree_writes_total",
				Help:      "Condition tree saves and deletes by operation and status",
			},
			[]string{"op", "status"},
		),
		variableReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "variable_reloads_total",
				Help:      "Engine variable reloads by status",
			},
			[]string{"status"},
		),
		variables: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "variables",
				Help:      "Number of engine variables currently loaded",
			},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEvaluation counts one evaluation and observes its latency.
func (m *Metrics) RecordEvaluation(result bool, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := ResultFalse
	switch {
	case err != nil:
		label = ResultError
	case result:
		label = ResultTrue
	}
	m.evaluations.WithLabelValues(label).Inc()
	m.evaluationDuration.Observe(elapsed.Seconds())
}

// CacheHit counts a hit on the named cache layer.
func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss counts a miss on the named cache layer.
func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// TreeWrite counts a save or delete.
func (m *Metrics) TreeWrite(op string, err error) {
	if m == nil {
		return
	}
	m.treeWrites.WithLabelValues(op, status(err)).Inc()
}

// VariablesReloaded records a reload attempt and, on success, the new count.
func (m *Metrics) VariablesReloaded(count int, err error) {
	if m == nil {
		return
	}
	m.variableReloads.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.variables.Set(float64(count))
	}
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
