// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Сервис мониторит:
//   - BaaS — HTTP checker к health endpoint провайдера аутентификации (critical)
//   - PostgreSQL — SQL checker через существующий pgxpool, только для backend=postgres (critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для BaaS
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthTargets — зависимости, которые нужно мониторить.
type DephealthTargets struct {
	// BaaSURL — базовый URL BaaS
	BaaSURL string
	// AuthHealthPath — путь health endpoint провайдера аутентификации
	AuthHealthPath string
	// DB — *sql.DB из pgxpool (stdlib.OpenDBFromPool); nil для backend=rest
	DB *sql.DB
	// PGURL — URL PostgreSQL для лейблов метрик, не для подключения
	PGURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	deps   string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	baasOpts := []dephealth.DependencyOption{
		dephealth.FromURL(targets.BaaSURL),
		dephealth.WithHTTPHealthPath(healthPath(targets.BaaSURL, targets.AuthHealthPath)),
		dephealth.CheckInterval(checkInterval),
		dephealth.Critical(true),
	}
	if parsed, err := url.Parse(targets.BaaSURL); err == nil && parsed.Scheme == "https" {
		baasOpts = append(baasOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP("baas-auth", baasOpts...),
	)
	deps := "BaaS"

	if targets.DB != nil {
		// Connection pool mode: проверка через адаптер существующего pgxpool
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.DB)),
			dephealth.FromURL(targets.PGURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
		deps = "BaaS + PostgreSQL"
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		deps:   deps,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// healthPath добавляет путь health endpoint к пути базового URL.
// BaaS может быть опубликован за префиксом (https://host/proxy).
func healthPath(baseURL, healthEndpoint string) string {
	if healthEndpoint == "" {
		healthEndpoint = "/health"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return path.Clean("/" + healthEndpoint)
	}
	return path.Join(parsed.Path, healthEndpoint)
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.String("dependencies", ds.deps))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
