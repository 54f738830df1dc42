// metrics.go — Prometheus-метрики стража доступа.
// Метрики:
//   - wr_guard_decisions_total{state} — состояния стража после разрешения сессии
//   - wr_guard_redirects_total — перенаправления на страницу входа
package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	guardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wr_guard_decisions_total",
			Help: "Состояния стража доступа после разрешения сессии",
		},
		[]string{"state"},
	)

	guardRedirects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wr_guard_redirects_total",
			Help: "Перенаправления на страницу входа",
		},
	)
)
