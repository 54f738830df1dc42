package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAuthError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAuthError(AuthProviderUnavailable, cause)

	if err.Message != "Service d'authentification indisponible" {
		t.Errorf("Message = %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is должен находить исходную ошибку через Unwrap")
	}
	if !strings.Contains(err.Error(), "provider_unavailable") {
		t.Errorf("Error() = %q, ожидается код в тексте", err.Error())
	}

	wrapped := fmt.Errorf("вход: %w", err)
	ae, ok := AsAuth(wrapped)
	if !ok || ae.Code != AuthProviderUnavailable {
		t.Errorf("AsAuth не извлёк AuthError из цепочки: %v", wrapped)
	}
}

func TestRepositoryError(t *testing.T) {
	err := NewRepositoryError(OpDelete, RepoNotFound, "", nil)
	if err.Message != "Travailleur introuvable" {
		t.Errorf("Message = %q, ожидается стандартное сообщение", err.Message)
	}
	if err.Error() != "repository delete not_found: Travailleur introuvable" {
		t.Errorf("Error() = %q", err.Error())
	}

	custom := NewRepositoryError(OpInsert, RepoRejected, "permission denied for table workers", nil)
	if custom.Message != "permission denied for table workers" {
		t.Errorf("Message = %q, ожидается переданное сообщение", custom.Message)
	}

	wrapped := fmt.Errorf("сервис: %w", err)
	if !IsRepoCode(wrapped, RepoNotFound) {
		t.Error("IsRepoCode должен найти not_found в цепочке")
	}
	if IsRepoCode(wrapped, RepoConflict) {
		t.Error("IsRepoCode не должен совпадать с другим кодом")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", ErrNotAuthenticated, "Utilisateur non connecté"},
		{"repository", NewRepositoryError(OpList, RepoUnavailable, "", nil), "Base de données indisponible"},
		{"обёрнутая", fmt.Errorf("x: %w", NewAuthError(AuthUserAlreadyExists, nil)), "Un utilisateur avec cet email existe déjà."},
		{"чужая", errors.New("boom"), "Erreur inconnue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, ожидается %q", got, tt.want)
			}
		})
	}
}
