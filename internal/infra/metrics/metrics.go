package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	UpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Количество обработанных апдейтов по типам",
	}, []string{"type"})

	StoreRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_retries_total",
		Help: "Количество повторов операций хранилища",
	})

	ReactionConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reaction_conflicts_total",
		Help: "Конфликты версий при реакциях на мемы",
	})

	BroadcastDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_deliveries_total",
		Help: "Доставки рассылки по статусам",
	}, []string{"status"})

	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		UpdatesTotal,
		StoreRetriesTotal,
		ReactionConflictsTotal,
		BroadcastDeliveriesTotal,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncUpdate увеличивает счётчик апдейтов указанного типа.
func IncUpdate(updateType string) {
	UpdatesTotal.WithLabelValues(updateType).Inc()
}

// IncBroadcastDelivery фиксирует исход доставки одному подписчику.
func IncBroadcastDelivery(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BroadcastDeliveriesTotal.WithLabelValues(status).Inc()
}
