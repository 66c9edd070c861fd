package pricing

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ProviderRequests *prometheus.CounterVec
	DegradedQuotes   *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_provider_requests_total",
				Help: "Upstream quote provider calls by outcome.",
			},
			[]string{"provider", "status"},
		),
		DegradedQuotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_degraded_quotes_total",
				Help: "Quotes served from cache or static fallback.",
			},
			[]string{"source"},
		),
	}
	registry.MustRegister(m.ProviderRequests, m.DegradedQuotes)
	return m
}
