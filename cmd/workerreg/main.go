// Точка входа реестра сотрудников.
// Загружает конфигурацию, создаёт клиент BaaS (аутентификация + REST-шлюз),
// при backend=postgres применяет миграции и подключается к PostgreSQL,
// собирает хранилище сессий, сервисный слой, веб-интерфейс и JSON API,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/workerreg/internal/api/handlers"
	"github.com/bigkaa/workerreg/internal/api/middleware"
	"github.com/bigkaa/workerreg/internal/config"
	"github.com/bigkaa/workerreg/internal/database"
	"github.com/bigkaa/workerreg/internal/repository"
	"github.com/bigkaa/workerreg/internal/server"
	"github.com/bigkaa/workerreg/internal/service"
	"github.com/bigkaa/workerreg/internal/session"
	"github.com/bigkaa/workerreg/internal/supabase"
	"github.com/bigkaa/workerreg/internal/ui/auth"
	uihandlers "github.com/bigkaa/workerreg/internal/ui/handlers"
	"github.com/bigkaa/workerreg/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/workerreg/internal/ui/middleware"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Реестр сотрудников запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	if os.Getenv("WR_DEPHEALTH_GROUP") == "" {
		logger.Warn("WR_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx := context.Background()

	// 3. Клиент BaaS: провайдер аутентификации и REST-шлюз
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	baas := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, httpClient, logger)
	logger.Info("Клиент BaaS создан", slog.String("url", cfg.SupabaseURL))

	checks := []handlers.NamedChecker{
		{Name: "auth_provider", Checker: baas},
	}

	// 4. Хранилище записей
	var (
		workerRepo repository.WorkerRepository
		pgDB       *sql.DB
	)
	if cfg.UsesPostgres() {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		workerRepo = repository.NewWorkerPostgresRepository(pool)
		checks = append(checks, handlers.NamedChecker{Name: "postgresql", Checker: database.NewReadinessChecker(pool)})
	} else {
		workerRepo = repository.NewWorkerRESTRepository(baas, cfg.WorkersTable)
	}
	workerRepo = repository.WithMetrics(workerRepo, cfg.StorageBackend)

	// 5. Хранилище сессий
	store := session.New(baas, session.Options{
		VerifyTTL: cfg.SessionCacheTTL,
		CacheSize: cfg.SessionCacheSize,
	}, logger)
	defer store.Close()

	// 6. Сервисы
	forms := service.NewFormValidator()
	workerSvc := service.NewWorkerService(workerRepo, forms, logger)
	authSvc := service.NewAuthService(store, forms, logger)

	// 7. Переводы интерфейса
	bundle := i18n.Init(cfg.DefaultLang, logger)
	if err := i18n.LoadFromEmbedFS(bundle, logger); err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. Веб-интерфейс
	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, cfg.CookieSecure)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("WR_SESSION_SECRET не задан, сессии не сохраняются между рестартами")
	}

	uiComponents := &server.UIComponents{
		SessionGuard:     uimiddleware.NewSessionGuard(store, sessionMgr, logger),
		AuthHandler:      uihandlers.NewAuthHandler(authSvc, sessionMgr, logger),
		HomeHandler:      uihandlers.NewHomeHandler(logger),
		AddWorkerHandler: uihandlers.NewAddWorkerHandler(workerSvc, logger),
		WorkersHandler: uihandlers.NewWorkersHandler(
			workerSvc,
			uihandlers.NewNoticeBoard(cfg.NoticeTTL, cfg.ListCacheSize),
			cfg.ListCacheSize, cfg.ListCacheTTL,
			logger,
		),
		EventsHandler: uihandlers.NewEventsHandler(store, cfg.SSEKeepAlive, logger),
	}
	logger.Info("Веб-интерфейс инициализирован",
		slog.String("default_lang", cfg.DefaultLang),
		slog.Bool("secure_cookie", cfg.CookieSecure),
	)

	// 9. JSON API под JWT провайдера (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.APIEnabled {
		jwtAuth, err = middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.JWTIssuer,
			cfg.JWTSecret,
			httpClient,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		checks = append(checks, handlers.NamedChecker{
			Name:    "jwks",
			Checker: middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.HTTPTimeout),
		})
		logger.Info("JSON API включён",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
			slog.Bool("hs256", cfg.JWTSecret != ""),
		)
	} else {
		logger.Info("JSON API отключён (WR_API_ENABLED=false)")
	}

	apiHandler := handlers.NewAPIHandler(handlers.NewHealthHandler(checks...), workerSvc, logger)

	// 10. topologymetrics — мониторинг зависимостей (BaaS + PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"workerreg",
		cfg.DephealthGroup,
		service.DephealthTargets{
			BaaSURL:        cfg.SupabaseURL,
			AuthHealthPath: cfg.DephealthAuthPath,
			DB:             pgDB,
			PGURL:          cfg.DatabaseURL(),
		},
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth, uiComponents)
	srv.OnShutdown(store.Close)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Реестр сотрудников остановлен")
}
