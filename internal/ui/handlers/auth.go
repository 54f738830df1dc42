// auth.go — вход, регистрация и выход.
// Вход и регистрация выполняются формой POST /auth, режим задаётся полем mode.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/service"
	"github.com/bigkaa/workerreg/internal/ui/auth"
	"github.com/bigkaa/workerreg/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/workerreg/internal/ui/middleware"
	"github.com/bigkaa/workerreg/internal/ui/pages"
)

// AuthHandler — обработчики страницы /auth и выхода.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewAuthHandler создаёт новый AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, sessions *auth.SessionManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     authSvc,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "ui_auth")),
	}
}

// HandleAuthPage — GET /auth
// Форма входа; ?mode=signup открывает регистрацию.
func (h *AuthHandler) HandleAuthPage(w http.ResponseWriter, r *http.Request) {
	data := pages.AuthData{Mode: pages.ModeLogin}
	if r.URL.Query().Get("mode") == pages.ModeSignup {
		data.Mode = pages.ModeSignup
	}
	renderPage(w, r, http.StatusOK, pages.Auth(data), h.logger)
}

// HandleAuthSubmit — POST /auth
func (h *AuthHandler) HandleAuthSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Некорректная форма", http.StatusBadRequest)
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if r.PostFormValue("mode") == pages.ModeSignup {
		h.signUp(w, r, email, password)
		return
	}
	h.signIn(w, r, email, password)
}

// signUp регистрирует пользователя. После успеха форма переключается
// на вход и очищается.
func (h *AuthHandler) signUp(w http.ResponseWriter, r *http.Request, email, password string) {
	if err := h.auth.SignUp(r.Context(), email, password); err != nil {
		renderPage(w, r, http.StatusOK, pages.Auth(pages.AuthData{
			Mode:    pages.ModeSignup,
			Email:   email,
			Message: errorMessage(r, err),
		}), h.logger)
		return
	}

	h.logger.Info("Пользователь зарегистрирован")
	renderPage(w, r, http.StatusOK, pages.Auth(pages.AuthData{
		Mode: pages.ModeLogin,
		Message: &pages.Message{
			Kind: pages.KindSuccess,
			Text: i18n.T(r.Context(), "auth.signup.success"),
		},
	}), h.logger)
}

// signIn выполняет вход и сохраняет сессию в cookie.
func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, email, password string) {
	key := uimiddleware.DeviceFromContext(r.Context())

	snap, err := h.auth.SignIn(r.Context(), key, email, password)
	if err != nil {
		renderPage(w, r, http.StatusOK, pages.Auth(pages.AuthData{
			Mode:    pages.ModeLogin,
			Email:   email,
			Message: errorMessage(r, err),
		}), h.logger)
		return
	}

	if err := h.sessions.SetSessionCookie(w, string(key), snap.Session); err != nil {
		h.logger.Error("Ошибка установки session cookie",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Ошибка создания сессии", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Пользователь вошёл",
		slog.String("user_id", snap.UserID()),
	)
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

// HandleLogout — POST /logout
// Локальная сессия очищается в любом случае, ошибка провайдера только логируется.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := uimiddleware.SnapshotFromContext(ctx)

	if err := h.auth.SignOut(ctx, uimiddleware.DeviceFromContext(ctx), snap.Session); err != nil {
		h.logger.Warn("Ошибка выхода у провайдера",
			slog.String("error", err.Error()),
		)
	}
	h.sessions.ClearSessionCookie(w)

	h.logger.Info("Пользователь вышел",
		slog.String("user_id", snap.UserID()),
	)
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

// errorMessage — сообщение формы «Erreur: ...».
func errorMessage(r *http.Request, err error) *pages.Message {
	return &pages.Message{
		Kind: pages.KindError,
		Text: i18n.Tf(r.Context(), "auth.error", apperr.UserMessage(err)),
	}
}
