// workers.go — сервис записей о сотрудниках.
// Политика действий: изменение и удаление без сессии не выполняются и не
// обращаются к хранилищу; создание без сессии — AuthError{not_authenticated}.
package service

import (
	"context"
	"log/slog"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/repository"
	"github.com/bigkaa/workerreg/internal/supabase"
)

// WorkerService — сервис записей о сотрудниках.
type WorkerService struct {
	repo   repository.WorkerRepository
	forms  *FormValidator
	logger *slog.Logger
}

// NewWorkerService создаёт сервис записей о сотрудниках.
func NewWorkerService(
	repo repository.WorkerRepository,
	forms *FormValidator,
	logger *slog.Logger,
) *WorkerService {
	return &WorkerService{
		repo:   repo,
		forms:  forms,
		logger: logger.With(slog.String("component", "worker_service")),
	}
}

// List возвращает записи от новых к старым с необязательным фильтром по отделу.
func (s *WorkerService) List(ctx context.Context, snap model.Snapshot, filter model.ListFilter) ([]model.Worker, error) {
	workers, err := s.repo.List(withToken(ctx, snap), filter)
	if err != nil {
		s.logger.Error("Ошибка загрузки сотрудников",
			slog.String("department", filter.Department),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return workers, nil
}

// Create проверяет форму и создаёт запись от имени пользователя сессии.
func (s *WorkerService) Create(ctx context.Context, snap model.Snapshot, form model.WorkerForm) (*model.Worker, error) {
	if !snap.LoggedIn() {
		return nil, apperr.ErrNotAuthenticated
	}

	form = form.Normalize()
	if err := s.forms.Worker(apperr.OpInsert, form); err != nil {
		return nil, err
	}

	w, err := s.repo.Insert(withToken(ctx, snap), form, snap.UserID())
	if err != nil {
		s.logger.Error("Ошибка создания сотрудника",
			slog.String("user_id", snap.UserID()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("Сотрудник создан",
		slog.String("worker_id", w.ID),
		slog.String("user_id", snap.UserID()),
		slog.String("department", w.Department),
	)
	return w, nil
}

// Update перезаписывает изменяемые поля записи.
// Без сессии возвращает ErrSessionRequired, не обращаясь к хранилищу.
func (s *WorkerService) Update(ctx context.Context, snap model.Snapshot, id string, form model.WorkerForm) error {
	if !snap.LoggedIn() {
		gatedActionsTotal.WithLabelValues(string(apperr.OpUpdate)).Inc()
		return ErrSessionRequired
	}

	form = form.Normalize()
	if err := s.forms.Worker(apperr.OpUpdate, form); err != nil {
		return err
	}

	if err := s.repo.Update(withToken(ctx, snap), id, form); err != nil {
		s.logger.Error("Ошибка обновления сотрудника",
			slog.String("worker_id", id),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Info("Сотрудник обновлён",
		slog.String("worker_id", id),
		slog.String("user_id", snap.UserID()),
	)
	return nil
}

// Delete безвозвратно удаляет запись.
// Без сессии возвращает ErrSessionRequired, не обращаясь к хранилищу.
func (s *WorkerService) Delete(ctx context.Context, snap model.Snapshot, id string) error {
	if !snap.LoggedIn() {
		gatedActionsTotal.WithLabelValues(string(apperr.OpDelete)).Inc()
		return ErrSessionRequired
	}

	if err := s.repo.Delete(withToken(ctx, snap), id); err != nil {
		s.logger.Error("Ошибка удаления сотрудника",
			slog.String("worker_id", id),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Info("Сотрудник удалён",
		slog.String("worker_id", id),
		slog.String("user_id", snap.UserID()),
	)
	return nil
}

// withToken передаёт access token сессии REST-шлюзу.
func withToken(ctx context.Context, snap model.Snapshot) context.Context {
	if token := snap.AccessToken(); token != "" {
		return supabase.WithAccessToken(ctx, token)
	}
	return ctx
}
