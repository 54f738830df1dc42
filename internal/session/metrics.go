// metrics.go — Prometheus метрики хранилища сессий.
// Регистрирует: wr_session_resolutions_total, wr_session_events_total,
// wr_session_dropped_events_total, wr_session_token_cache_lookups_total,
// wr_session_subscriptions.
package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wr_session_resolutions_total",
			Help: "Количество разрешений сессии по результату (present, absent, stale)",
		},
		[]string{"result"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wr_session_events_total",
			Help: "Количество опубликованных событий сессии",
		},
		[]string{"kind"},
	)

	droppedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wr_session_dropped_events_total",
			Help: "Количество событий, вытесненных из переполненного буфера подписки",
		},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wr_session_token_cache_lookups_total",
			Help: "Обращения к кэшу проверенных токенов (hit, miss)",
		},
		[]string{"result"},
	)

	activeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wr_session_subscriptions",
			Help: "Текущее количество подписок на события сессии",
		},
	)
)
