// Package metrics exposes the assistant's Prometheus counters.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mia"

// Metrics implements chat.Recorder, catalog.Recorder and validator.Recorder.
type Metrics struct {
	registry   *prometheus.Registry
	responses  *prometheus.CounterVec
	retrievals *prometheus.CounterVec
	redFlags   *prometheus.CounterVec
	mentions   *prometheus.CounterVec
	requests   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Chat responses by response type.",
		}, []string{"type"}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_tier_total",
			Help:      "Product retrievals by the tier that answered.",
		}, []string{"tier", "alternative"}),
		redFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "red_flags_total",
			Help:      "Emergency red flags detected by severity.",
		}, []string{"severity"}),
		mentions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validator_mentions_total",
			Help:      "Product mentions checked by the response validator, by outcome.",
		}, []string{"outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		m.responses,
		m.retrievals,
		m.redFlags,
		m.mentions,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveResponse(responseType string) {
	m.responses.WithLabelValues(responseType).Inc()
}

func (m *Metrics) ObserveRetrieval(tier string, alternative bool) {
	m.retrievals.WithLabelValues(tier, strconv.FormatBool(alternative)).Inc()
}

func (m *Metrics) ObserveRedFlag(severity string) {
	m.redFlags.WithLabelValues(severity).Inc()
}

func (m *Metrics) ObserveMention(outcome string) {
	m.mentions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
