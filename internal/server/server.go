// Пакет server — HTTP-сервер реестра сотрудников с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/workerreg/internal/api/handlers"
	"github.com/bigkaa/workerreg/internal/api/middleware"
	"github.com/bigkaa/workerreg/internal/config"
	uihandlers "github.com/bigkaa/workerreg/internal/ui/handlers"
	"github.com/bigkaa/workerreg/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/workerreg/internal/ui/middleware"
	"github.com/bigkaa/workerreg/internal/ui/static"
)

// UIComponents — компоненты веб-интерфейса для регистрации маршрутов.
type UIComponents struct {
	SessionGuard     *uimiddleware.SessionGuard
	AuthHandler      *uihandlers.AuthHandler
	HomeHandler      *uihandlers.HomeHandler
	AddWorkerHandler *uihandlers.AddWorkerHandler
	WorkersHandler   *uihandlers.WorkersHandler
	EventsHandler    *uihandlers.EventsHandler
}

// Server — HTTP-сервер реестра сотрудников.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware для /api/v1 (nil — JSON API не регистрируется).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	jwtAuth *middleware.JWTAuth,
	ui *UIComponents,
) *Server {
	router := NewRouter(cfg, api, jwtAuth, ui, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout не задаётся: SSE-поток сессии живёт дольше любого лимита
		IdleTimeout: 120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер: health и метрики без аутентификации,
// JSON API под JWT, веб-интерфейс под стражем сессии.
func NewRouter(
	cfg *config.Config,
	api *handlers.APIHandler,
	jwtAuth *middleware.JWTAuth,
	ui *UIComponents,
	logger *slog.Logger,
) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую
	router.Get("/health/live", api.HealthLive)
	router.Get("/health/ready", api.HealthReady)
	router.Get("/metrics", api.GetMetrics)

	if jwtAuth != nil {
		router.Route("/api/v1/workers", func(r chi.Router) {
			r.Use(jwtAuth.Middleware())
			r.Get("/", api.ListWorkers)
			r.Post("/", api.CreateWorker)
			r.Put("/{id}", api.UpdateWorker)
			r.Delete("/{id}", api.DeleteWorker)
		})
	}

	if ui != nil {
		registerUI(router, cfg, ui)
	}

	return router
}

// registerUI регистрирует страницы веб-интерфейса.
// Действия над записями доступны и без сессии: сервис отклоняет их молча.
func registerUI(router chi.Router, cfg *config.Config, ui *UIComponents) {
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	router.Group(func(r chi.Router) {
		r.Use(i18n.Middleware(cfg.DefaultLang))

		r.Get("/", uihandlers.HandleRoot)
		r.Post("/set-language", uihandlers.HandleSetLanguage)

		r.Group(func(r chi.Router) {
			r.Use(ui.SessionGuard.Resolve())

			r.Get("/auth", ui.AuthHandler.HandleAuthPage)
			r.Post("/auth", ui.AuthHandler.HandleAuthSubmit)
			r.Post("/logout", ui.AuthHandler.HandleLogout)
			r.Get("/events/session", ui.EventsHandler.HandleSession)
			r.Post("/worker-list/{id}/edit", ui.WorkersHandler.HandleEdit)
			r.Post("/worker-list/{id}/delete", ui.WorkersHandler.HandleDelete)

			r.Group(func(r chi.Router) {
				r.Use(ui.SessionGuard.Require())

				r.Get("/home", ui.HomeHandler.HandleHome)
				r.Get("/add-worker", ui.AddWorkerHandler.HandleForm)
				r.Post("/add-worker", ui.AddWorkerHandler.HandleSubmit)
				r.Get("/worker-list", ui.WorkersHandler.HandleList)
			})
		})
	})
}

// OnShutdown регистрирует функцию, вызываемую в начале graceful shutdown.
// Нужна для закрытия долгоживущих SSE-потоков до ожидания соединений.
func (s *Server) OnShutdown(f func()) {
	s.httpServer.RegisterOnShutdown(f)
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
