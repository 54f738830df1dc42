// auth.go — сервис аутентификации: проверка форм поверх хранилища сессий.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/session"
)

// AuthService — регистрация, вход и выход.
type AuthService struct {
	store  *session.Store
	forms  *FormValidator
	logger *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(store *session.Store, forms *FormValidator, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  store,
		forms:  forms,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// SignUp регистрирует пользователя. Сессия не создаётся: после успеха
// пользователь входит отдельно.
func (s *AuthService) SignUp(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := s.forms.Credentials(email, password, true); err != nil {
		return err
	}
	if err := s.store.SignUp(ctx, email, password); err != nil {
		s.logger.Warn("Регистрация отклонена", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// SignIn выполняет вход для ключа браузера.
func (s *AuthService) SignIn(ctx context.Context, key session.Key, email, password string) (model.Snapshot, error) {
	email = strings.TrimSpace(email)
	if err := s.forms.Credentials(email, password, false); err != nil {
		return s.store.Snapshot(key), err
	}
	snap, err := s.store.SignIn(ctx, key, email, password)
	if err != nil {
		s.logger.Warn("Вход отклонён", slog.String("error", err.Error()))
		return snap, err
	}
	return snap, nil
}

// SignOut выполняет выход. Локальная сессия очищается всегда.
func (s *AuthService) SignOut(ctx context.Context, key session.Key, current *model.Session) error {
	return s.store.SignOut(ctx, key, current)
}
