// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics хранит коллекторы Prometheus, используемые сервисом.
type Metrics struct {
	OrdersCreated       prometheus.Counter
	PaymentsConfirmed   prometheus.Counter
	ChainRequests       *prometheus.CounterVec
	NotifyFailures      prometheus.Counter
	WithdrawalsByStatus *prometheus.CounterVec
}

var (
	regOnce  sync.Once
	instance *Metrics
)

// Registry создаёт и регистрирует метрики один раз на процесс.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		instance = &Metrics{
			OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_created_total",
				Help:      "Total orders created.",
			}),
			PaymentsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_confirmed_total",
				Help:      "Total invoices confirmed as paid.",
			}),
			ChainRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_requests_total",
				Help:      "Total chain indexer requests by outcome.",
			}, []string{"outcome"}),
			NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_failures_total",
				Help:      "Total failed notification deliveries.",
			}),
			WithdrawalsByStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "withdrawals_total",
				Help:      "Total withdrawal requests by final status.",
			}, []string{"status"}),
		}

		prometheus.MustRegister(
			instance.OrdersCreated,
			instance.PaymentsConfirmed,
			instance.ChainRequests,
			instance.NotifyFailures,
			instance.WithdrawalsByStatus,
		)
	})
	return instance
}
