package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/workerreg/internal/domain/guard"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/session"
	"github.com/bigkaa/workerreg/internal/supabase"
	"github.com/bigkaa/workerreg/internal/ui/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tokenProvider знает один действующий access token и один refresh token.
type tokenProvider struct{}

func (tokenProvider) SignUp(context.Context, string, string) (*supabase.SignUpResponse, error) {
	return nil, &supabase.APIError{Status: 500}
}

func (tokenProvider) SignIn(context.Context, string, string) (*supabase.TokenResponse, error) {
	return nil, &supabase.APIError{Status: 400, Code: "invalid_credentials"}
}

func (tokenProvider) Refresh(_ context.Context, refreshToken string) (*supabase.TokenResponse, error) {
	if refreshToken != "rt-ok" {
		return nil, &supabase.APIError{Status: 400, Code: "invalid_grant"}
	}
	return &supabase.TokenResponse{
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
		ExpiresIn:    3600,
		User:         supabase.User{ID: "u-1", Email: "amani@example.com"},
	}, nil
}

func (tokenProvider) GetUser(_ context.Context, accessToken string) (*supabase.User, error) {
	if accessToken != "at-ok" && accessToken != "at-new" {
		return nil, &supabase.APIError{Status: 401, Code: "bad_jwt"}
	}
	return &supabase.User{ID: "u-1", Email: "amani@example.com"}, nil
}

func (tokenProvider) SignOut(context.Context, string) error { return nil }

type captured struct {
	called bool
	snap   model.Snapshot
	state  guard.State
	device session.Key
}

func newChain(t *testing.T) (http.Handler, *auth.SessionManager, *captured) {
	t.Helper()
	store := session.New(tokenProvider{}, session.Options{}, testLogger())
	t.Cleanup(store.Close)
	sessions, err := auth.NewSessionManager("test-key", false)
	if err != nil {
		t.Fatal(err)
	}
	sg := NewSessionGuard(store, sessions, testLogger())

	got := &captured{}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.called = true
		got.snap = SnapshotFromContext(r.Context())
		got.state = GuardFromContext(r.Context()).State()
		got.device = DeviceFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return sg.Resolve()(sg.Require()(final)), sessions, got
}

// testDevice — ключ устройства запросов withSession.
const testDevice = "0b9f2c4e-5d6a-4f1b-9c3e-7a8b9c0d1e2f"

// withSession возвращает запрос с cookie устройства и зашифрованной cookie сессии.
func withSession(t *testing.T, sessions *auth.SessionManager, s *model.Session) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := sessions.SetSessionCookie(rec, testDevice, s); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: auth.DeviceCookieName, Value: testDevice})
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRequire_RedirectsWithoutSession(t *testing.T) {
	chain, _, got := newChain(t)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/home", nil))

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != guard.RedirectPath {
		t.Fatalf("статус %d, Location %q", rec.Code, rec.Header().Get("Location"))
	}
	if got.called {
		t.Error("защищённый обработчик не должен вызываться")
	}
	if findCookie(rec, auth.DeviceCookieName) == nil {
		t.Error("cookie устройства должна выставляться даже при redirect")
	}
}

func TestResolve_ValidSession(t *testing.T) {
	chain, sessions, got := newChain(t)

	req := withSession(t, sessions, &model.Session{
		UserID: "u-1", AccessToken: "at-ok", RefreshToken: "rt-ok", ExpiresAt: time.Now().Add(time.Hour),
	})
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !got.called {
		t.Fatalf("статус %d, обработчик вызван: %v", rec.Code, got.called)
	}
	if !got.snap.LoggedIn() || got.snap.UserID() != "u-1" {
		t.Errorf("снимок: %+v", got.snap)
	}
	if got.state != guard.StateAuthenticated {
		t.Errorf("состояние стража = %q", got.state)
	}
	if got.device == "" {
		t.Error("ключ устройства пустой")
	}
	// Токен не менялся — cookie сессии не перезаписывается
	if findCookie(rec, auth.SessionCookieName) != nil {
		t.Error("cookie сессии не должна перевыставляться")
	}
}

func TestResolve_ExpiredTokenRefreshRewritesCookie(t *testing.T) {
	chain, sessions, got := newChain(t)

	req := withSession(t, sessions, &model.Session{
		UserID: "u-1", AccessToken: "at-old", RefreshToken: "rt-ok", ExpiresAt: time.Now().Add(-time.Minute),
	})
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if !got.called || got.snap.AccessToken() != "at-new" {
		t.Fatalf("ожидалась обновлённая сессия, снимок %+v", got.snap)
	}

	cookie := findCookie(rec, auth.SessionCookieName)
	if cookie == nil {
		t.Fatal("cookie сессии не перезаписана")
	}
	req2 := httptest.NewRequest(http.MethodGet, "/home", nil)
	req2.AddCookie(cookie)
	s, err := sessions.SessionFromRequest(req2, testDevice)
	if err != nil || s == nil || s.RefreshToken != "rt-new" {
		t.Errorf("новая cookie: %+v, %v", s, err)
	}
}

func TestResolve_InvalidSessionClearsCookie(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T, sessions *auth.SessionManager) *http.Request
	}{
		{"отозванный токен", func(t *testing.T, sessions *auth.SessionManager) *http.Request {
			return withSession(t, sessions, &model.Session{AccessToken: "at-revoked", ExpiresAt: time.Now().Add(time.Hour)})
		}},
		{"cookie другого устройства", func(t *testing.T, sessions *auth.SessionManager) *http.Request {
			rec := httptest.NewRecorder()
			s := &model.Session{UserID: "u-1", AccessToken: "at-ok", ExpiresAt: time.Now().Add(time.Hour)}
			if err := sessions.SetSessionCookie(rec, testDevice, s); err != nil {
				t.Fatal(err)
			}
			req := httptest.NewRequest(http.MethodGet, "/home", nil)
			req.AddCookie(&http.Cookie{Name: auth.DeviceCookieName, Value: "9d3e1f20-1111-4222-8333-944455556666"})
			req.AddCookie(findCookie(rec, auth.SessionCookieName))
			return req
		}},
		{"повреждённая cookie", func(_ *testing.T, _ *auth.SessionManager) *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/home", nil)
			req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "garbage"})
			return req
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, sessions, got := newChain(t)

			rec := httptest.NewRecorder()
			chain.ServeHTTP(rec, tt.req(t, sessions))

			if rec.Code != http.StatusFound || got.called {
				t.Errorf("ожидался redirect, статус %d", rec.Code)
			}
			cookie := findCookie(rec, auth.SessionCookieName)
			if cookie == nil || cookie.MaxAge >= 0 {
				t.Errorf("cookie сессии должна быть очищена: %+v", cookie)
			}
		})
	}
}

func TestSnapshotFromContext_WithoutResolve(t *testing.T) {
	snap := SnapshotFromContext(context.Background())
	if !snap.Loading {
		t.Error("без Resolve снимок должен быть в состоянии загрузки")
	}
	if GuardFromContext(context.Background()) != nil {
		t.Error("без Resolve стража нет")
	}
}
