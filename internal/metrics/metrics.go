package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry exposes the process's Prometheus metrics (ambient stack, not a
// core component itself): call counters by model/provider/status, latency
// histograms, cost accumulation, and retry/structured-parse counters. No code
// outside this package updates them.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal            *prometheus.CounterVec
	RequestLatency           *prometheus.HistogramVec
	CostUSD                  *prometheus.CounterVec
	ThrottlingRetriesTotal   *prometheus.CounterVec
	ThrottlingExhaustedTotal *prometheus.CounterVec
	StructuredParseFailures  *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmgate_requests_total",
			Help: "Total chat requests dispatched, by model/provider/status",
		}, []string{"model", "provider", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmgate_request_latency_ms",
			Help:    "End-to-end chat request latency in milliseconds, including retry backoff",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"model", "provider"}),
		CostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmgate_cost_usd_total",
			Help: "Estimated USD cost accumulated from token pricing",
		}, []string{"model", "provider"}),
		ThrottlingRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmgate_throttling_retries_total",
			Help: "Total throttling retries attempted by the dispatch core's retry wrapper",
		}, []string{"model", "provider"}),
		ThrottlingExhaustedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmgate_throttling_exhausted_total",
			Help: "Total calls that exhausted max_retries on throttling",
		}, []string{"model", "provider"}),
		StructuredParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmgate_structured_parse_failures_total",
			Help: "Total structured-response parse failures, by target class name",
		}, []string{"model", "class_name"}),
	}
	reg.MustRegister(
		m.RequestsTotal,
		m.RequestLatency,
		m.CostUSD,
		m.ThrottlingRetriesTotal,
		m.ThrottlingExhaustedTotal,
		m.StructuredParseFailures,
	)
	return m
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
