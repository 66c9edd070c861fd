package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	OrdersSubmitted *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
	TradesExecuted  *prometheus.CounterVec
	DepositsTotal   prometheus.Counter
	UsersRegistered prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		OrdersSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_submitted_total",
				Help: "Limit orders accepted, by side.",
			},
			[]string{"side"},
		),
		OrdersCancelled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orders_cancelled_total",
				Help: "Limit orders cancelled by their owner.",
			},
		),
		TradesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trades_executed_total",
				Help: "Immediate market trades settled, by side.",
			},
			[]string{"side"},
		),
		DepositsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_deposits_total",
				Help: "Cash deposits credited.",
			},
		),
		UsersRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "users_registered_total",
				Help: "Accounts created.",
			},
		),
	}
	registry.MustRegister(m.OrdersSubmitted, m.OrdersCancelled, m.TradesExecuted, m.DepositsTotal, m.UsersRegistered)
	return m
}
