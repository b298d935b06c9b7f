// Package metrics defines the node's Prometheus counters: operations
// applied to the store, HTTP requests served, and errors by kind.
// This mirrors the counter-vector shape the system's original
// implementation exposed via the Rust `prometheus` crate, carried
// forward here with the idiomatic Go client library.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the three counter vectors exposed on GET /metrics.
type Metrics struct {
	registry *prometheus.Registry

	KVOps    *prometheus.CounterVec
	Requests *prometheus.CounterVec
	Errors   *prometheus.CounterVec
}

// New builds and registers the counter vectors on a fresh, private
// registry (never the global default registerer, so multiple nodes
// can be constructed in-process during tests without collisions).
func New() *Metrics {
	registry := prometheus.NewRegistry()

	kvOps := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "kv_ops", Help: "Key-value operations applied to the store"},
		[]string{"op"},
	)
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "requests", Help: "Total API requests"},
		[]string{"method", "path", "status"},
	)
	errs := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "errors", Help: "Total API errors"},
		[]string{"kind"},
	)

	registry.MustRegister(kvOps, requests, errs)

	return &Metrics{registry: registry, KVOps: kvOps, Requests: requests, Errors: errs}
}

// Handler returns an http.Handler serving the text exposition format
// for this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
