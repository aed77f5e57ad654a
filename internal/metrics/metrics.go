// Package metrics содержит счётчики Prometheus сервиса киоска.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics объединяет счётчики бизнес-операций киоска.
type Metrics struct {
	OrdersCreated   prometheus.Counter
	Transitions     *prometheus.CounterVec
	ArchiveFailures prometheus.Counter
}

// New создаёт и регистрирует счётчики в указанном реестре.
func New(reg prometheus.Registerer) *Metrics {
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "orders_created_total",
		Help:      "Total number of orders created.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "order_transitions_total",
		Help:      "Total number of order status transitions.",
	}, []string{"status"})
	archiveFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "archive_failures_total",
		Help:      "Total number of failed archive-and-delete operations.",
	})

	reg.MustRegister(ordersCreated, transitions, archiveFailures)

	return &Metrics{
		OrdersCreated:   ordersCreated,
		Transitions:     transitions,
		ArchiveFailures: archiveFailures,
	}
}

// Handler возвращает HTTP-обработчик эндпоинта /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
