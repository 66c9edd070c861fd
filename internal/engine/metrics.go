package engine

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	SweepsTotal        *prometheus.CounterVec
	OrdersSwept        *prometheus.CounterVec
	SweepDuration      prometheus.Histogram
	SettlementDuration prometheus.Histogram
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		SweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_sweeps_total",
				Help: "Sweep runs by result.",
			},
			[]string{"result"},
		),
		OrdersSwept: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_swept_total",
				Help: "Orders handled by sweeps, by outcome.",
			},
			[]string{"outcome"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_sweep_duration_seconds",
				Help:    "Duration of full sweep passes.",
				Buckets: prometheus.DefBuckets,
			},
		),
		SettlementDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_settlement_duration_seconds",
				Help:    "Duration of individual settlements.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	registry.MustRegister(m.SweepsTotal, m.OrdersSwept, m.SweepDuration, m.SettlementDuration)
	return m
}
