// Пакет middleware — HTTP middleware веб-интерфейса.
// auth.go — разрешение сессии из cookie и страж доступа (Access Guard).
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bigkaa/workerreg/internal/domain/guard"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/session"
	"github.com/bigkaa/workerreg/internal/ui/auth"
)

// contextKey — тип для ключей контекста UI (избегаем коллизий с API middleware).
type contextKey string

const (
	// ContextKeySnapshot — снимок сессии в контексте запроса.
	ContextKeySnapshot contextKey = "ui_snapshot"
	// ContextKeyDevice — ключ браузера в контексте запроса.
	ContextKeyDevice contextKey = "ui_device"
	// ContextKeyGuard — страж запроса.
	ContextKeyGuard contextKey = "ui_guard"
)

// SessionGuard — middleware разрешения сессии и защиты страниц.
// Каждый запрос разрешает сессию через хранилище сессий; при обновлении
// пары токенов cookie перезаписывается, при отсутствии сессии — очищается.
type SessionGuard struct {
	store    *session.Store
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewSessionGuard создаёт middleware сессий.
func NewSessionGuard(store *session.Store, sessions *auth.SessionManager, logger *slog.Logger) *SessionGuard {
	return &SessionGuard{
		store:    store,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "ui_session_guard")),
	}
}

// Resolve возвращает middleware, которое разрешает сессию запроса
// и помещает в контекст ключ браузера, снимок и страж.
// Применяется ко всем маршрутам UI, включая /auth.
func (sg *SessionGuard) Resolve() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			device := sg.sessions.DeviceKey(w, r)
			key := session.Key(device)

			creds, err := sg.sessions.SessionFromRequest(r, device)
			if err != nil {
				sg.logger.Debug("Ошибка чтения cookie сессии",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				// Повреждённый cookie — очищаем, сессия отсутствует
				sg.sessions.ClearSessionCookie(w)
				creds = nil
			}

			snap := sg.store.Resolve(r.Context(), key, creds)
			sg.syncCookie(w, device, creds, snap)

			g := guard.New()
			state, _ := g.Apply(snap.LoggedIn(), snap.Seq, string(session.EventInitialSession))
			guardDecisions.WithLabelValues(string(state)).Inc()

			ctx := context.WithValue(r.Context(), ContextKeyDevice, key)
			ctx = context.WithValue(ctx, ContextKeySnapshot, snap)
			ctx = context.WithValue(ctx, ContextKeyGuard, g)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require возвращает middleware активного перенаправления:
// в состоянии UNAUTHENTICATED — 302 на /auth.
// Применяется к защищённым страницам после Resolve.
func (sg *SessionGuard) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g := GuardFromContext(r.Context())
			if g == nil || g.State().Action() != guard.ActionRender {
				guardRedirects.Inc()
				sg.logger.Debug("Нет сессии, redirect на страницу входа",
					slog.String("path", r.URL.Path),
				)
				http.Redirect(w, r, guard.RedirectPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// syncCookie приводит cookie к разрешённому снимку.
func (sg *SessionGuard) syncCookie(w http.ResponseWriter, device string, creds *model.Session, snap model.Snapshot) {
	switch {
	case snap.Session == nil && creds != nil:
		sg.sessions.ClearSessionCookie(w)
	case snap.Session != nil && (creds == nil || creds.AccessToken != snap.Session.AccessToken):
		if err := sg.sessions.SetSessionCookie(w, device, snap.Session); err != nil {
			sg.logger.Error("Ошибка обновления session cookie",
				slog.String("error", err.Error()),
			)
			return
		}
		sg.logger.Debug("Session cookie обновлён",
			slog.String("user_id", snap.Session.UserID),
		)
	}
}

// SnapshotFromContext извлекает снимок сессии из контекста.
// Без Resolve — снимок «ещё не разрешена».
func SnapshotFromContext(ctx context.Context) model.Snapshot {
	snap, ok := ctx.Value(ContextKeySnapshot).(model.Snapshot)
	if !ok {
		return model.Snapshot{Loading: true}
	}
	return snap
}

// DeviceFromContext извлекает ключ браузера из контекста.
func DeviceFromContext(ctx context.Context) session.Key {
	key, _ := ctx.Value(ContextKeyDevice).(session.Key)
	return key
}

// GuardFromContext извлекает страж запроса. Возвращает nil без Resolve.
func GuardFromContext(ctx context.Context) *guard.Guard {
	g, _ := ctx.Value(ContextKeyGuard).(*guard.Guard)
	return g
}
