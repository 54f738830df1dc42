// metrics.go — Prometheus метрики сервисного слоя.
// Регистрирует: wr_gated_actions_total.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gatedActionsTotal — действия над записями, отклонённые из-за отсутствия сессии.
var gatedActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wr_gated_actions_total",
		Help: "Количество действий над записями, отклонённых без активной сессии",
	},
	[]string{"action"},
)
