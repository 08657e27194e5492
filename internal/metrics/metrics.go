// Package metrics exposes Prometheus metrics for the install handshake.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopinstall"

// Metrics holds the handshake collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	initiations      *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	callbackDuration *prometheus.HistogramVec
}

// New creates Metrics registered on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		initiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "initiations_total",
			Help:      "Install handshakes started, by outcome.",
		}, []string{"outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Install callbacks handled, by outcome.",
		}, []string{"outcome"}),
		callbackDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "callback_duration_seconds",
			Help:      "Time spent handling install callbacks, including upstream calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.initiations, m.callbacks, m.callbackDuration)
	return m
}

// ObserveInitiate records one initiation.
func (m *Metrics) ObserveInitiate(outcome string) {
	if m == nil {
		return
	}
	m.initiations.WithLabelValues(outcome).Inc()
}

// ObserveCallback records one callback and how long it took.
func (m *Metrics) ObserveCallback(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
	m.callbackDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
