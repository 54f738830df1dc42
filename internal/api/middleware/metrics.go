// metrics.go — Prometheus HTTP метрики сервиса.
// Регистрирует метрики: wr_http_requests_total, wr_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wr_http_requests_total",
			Help: "Общее количество HTTP-запросов к реестру сотрудников",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wr_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к реестру сотрудников в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем идентификаторы на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
// Нужен для flush в SSE.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет идентификаторы записей на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /worker-list/a1b2c3d4-.../edit → /worker-list/{id}/edit
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/", "/auth", "/logout", "/set-language",
		"/home", "/add-worker", "/worker-list",
		"/events/session",
		"/health/live", "/health/ready", "/metrics",
		"/api/v1/workers":
		return path
	}

	if strings.HasPrefix(path, "/static/") {
		return "/static/*"
	}

	// Динамические пути: /<prefix>/{id}[/<action>]
	prefixes := []string{"/worker-list/", "/api/v1/workers/"}
	for _, prefix := range prefixes {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" {
			continue
		}
		_, action, hasAction := strings.Cut(rest, "/")
		if !hasAction {
			return prefix + "{id}"
		}
		switch action {
		case "edit", "delete":
			return prefix + "{id}/" + action
		default:
			return prefix + "{id}/*"
		}
	}

	return "other"
}
