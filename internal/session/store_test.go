package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/supabase"
)

func TestMain(m *testing.M) {
	// Горутина очистки expirable.LRU не завершается
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/hashicorp/golang-lru/v2/expirable.NewLRU[...].func1"),
	)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeProvider — управляемый провайдер аутентификации.
type fakeProvider struct {
	mu sync.Mutex
	// users — access token → пользователь
	users map[string]supabase.User
	// refresh — refresh token → новая пара токенов
	refresh map[string]*supabase.TokenResponse

	signInErr  error
	signUpResp *supabase.SignUpResponse
	signUpErr  error
	signOutErr error

	// blockGetUser — если не nil, GetUser сигнализирует в entered и ждёт release
	entered chan struct{}
	release chan struct{}

	getUserCalls atomic.Int32
	refreshCalls atomic.Int32
	signOutCalls atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		users:   map[string]supabase.User{},
		refresh: map[string]*supabase.TokenResponse{},
	}
}

func (f *fakeProvider) SignUp(_ context.Context, _, _ string) (*supabase.SignUpResponse, error) {
	return f.signUpResp, f.signUpErr
}

func (f *fakeProvider) SignIn(_ context.Context, email, _ string) (*supabase.TokenResponse, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	user := supabase.User{ID: "user-" + email, Email: email}
	f.mu.Lock()
	f.users["at-"+email] = user
	f.mu.Unlock()
	return &supabase.TokenResponse{
		AccessToken:  "at-" + email,
		RefreshToken: "rt-" + email,
		ExpiresIn:    3600,
		User:         user,
	}, nil
}

func (f *fakeProvider) Refresh(_ context.Context, refreshToken string) (*supabase.TokenResponse, error) {
	f.refreshCalls.Add(1)
	// Даём конкурентным вызовам встретиться внутри singleflight
	time.Sleep(20 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.refresh[refreshToken]
	if !ok {
		return nil, &supabase.APIError{Status: 400, Code: "invalid_grant", Message: "Invalid Refresh Token"}
	}
	return token, nil
}

func (f *fakeProvider) GetUser(_ context.Context, accessToken string) (*supabase.User, error) {
	f.getUserCalls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[accessToken]
	if !ok {
		return nil, &supabase.APIError{Status: 401, Code: "bad_jwt", Message: "invalid JWT"}
	}
	return &user, nil
}

func (f *fakeProvider) SignOut(_ context.Context, _ string) error {
	f.signOutCalls.Add(1)
	return f.signOutErr
}

func newTestStore(p Provider, opts Options) *Store {
	return New(p, opts, testLogger())
}

func validCreds(token string) *model.Session {
	return &model.Session{
		UserID:       "stale-id",
		AccessToken:  token,
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// receive ждёт событие подписки.
func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("канал подписки закрыт")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("событие не получено")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("неожиданное событие: %+v", ev)
	default:
	}
}

func TestSnapshot_UnknownKeyIsLoading(t *testing.T) {
	s := newTestStore(newFakeProvider(), Options{})
	defer s.Close()

	snap := s.Snapshot("k1")
	if !snap.Loading {
		t.Error("снимок неизвестного ключа должен быть в состоянии загрузки")
	}
	if snap.LoggedIn() {
		t.Error("снимок загрузки не может содержать сессию")
	}
}

func TestResolve_NoCredentials(t *testing.T) {
	s := newTestStore(newFakeProvider(), Options{})
	defer s.Close()

	snap := s.Resolve(context.Background(), "k1", nil)
	if snap.Loading {
		t.Error("после разрешения Loading должен быть false")
	}
	if snap.Session != nil {
		t.Error("без учётных данных сессия отсутствует")
	}
	if snap.Seq == 0 {
		t.Error("снимок должен нести номер разрешения")
	}
	if got := s.Snapshot("k1"); got.Seq != snap.Seq {
		t.Errorf("Snapshot().Seq = %d, ожидался %d", got.Seq, snap.Seq)
	}
}

func TestResolve_ValidToken(t *testing.T) {
	p := newFakeProvider()
	p.users["at-1"] = supabase.User{ID: "u-1", Email: "amani@example.com"}
	s := newTestStore(p, Options{})
	defer s.Close()

	snap := s.Resolve(context.Background(), "k1", validCreds("at-1"))
	if !snap.LoggedIn() {
		t.Fatal("ожидалась действующая сессия")
	}
	if snap.UserID() != "u-1" {
		t.Errorf("UserID = %q, ожидался u-1 (от провайдера)", snap.UserID())
	}
	if snap.Session.Email != "amani@example.com" {
		t.Errorf("Email = %q", snap.Session.Email)
	}

	// Повторное разрешение обслуживается кэшем
	s.Resolve(context.Background(), "k1", validCreds("at-1"))
	if n := p.getUserCalls.Load(); n != 1 {
		t.Errorf("GetUser вызван %d раз, ожидался 1", n)
	}
}

func TestResolve_ProviderErrorIsAbsent(t *testing.T) {
	p := newFakeProvider()
	s := newTestStore(p, Options{})
	defer s.Close()

	snap := s.Resolve(context.Background(), "k1", validCreds("unknown-token"))
	if snap.Loading {
		t.Error("ошибка провайдера не должна оставлять состояние загрузки")
	}
	if snap.LoggedIn() {
		t.Error("ошибка провайдера должна давать отсутствующую сессию")
	}
}

func TestResolve_ExpiredWithoutRefreshToken(t *testing.T) {
	p := newFakeProvider()
	s := newTestStore(p, Options{})
	defer s.Close()

	creds := &model.Session{AccessToken: "at", ExpiresAt: time.Now().Add(-time.Minute)}
	if snap := s.Resolve(context.Background(), "k1", creds); snap.LoggedIn() {
		t.Error("истёкшая сессия без refresh token должна быть отсутствующей")
	}
	if p.getUserCalls.Load() != 0 {
		t.Error("провайдер не должен вызываться")
	}
}

func TestResolve_StaleResultDiscarded(t *testing.T) {
	p := newFakeProvider()
	p.users["at-1"] = supabase.User{ID: "u-1"}
	p.entered = make(chan struct{})
	p.release = make(chan struct{})
	s := newTestStore(p, Options{})
	defer s.Close()

	slow := make(chan model.Snapshot, 1)
	go func() {
		slow <- s.Resolve(context.Background(), "k1", validCreds("at-1"))
	}()

	// Медленное разрешение (seq 1) внутри провайдера
	<-p.entered

	// Более позднее разрешение (seq 2) завершается первым
	fast := s.Resolve(context.Background(), "k1", nil)
	if fast.LoggedIn() {
		t.Fatal("быстрое разрешение должно дать отсутствующую сессию")
	}

	close(p.release)
	got := <-slow

	if got.LoggedIn() {
		t.Error("устаревший результат не должен перезаписать более свежий")
	}
	if got.Seq != fast.Seq {
		t.Errorf("Seq = %d, ожидался %d", got.Seq, fast.Seq)
	}
	if s.Snapshot("k1").LoggedIn() {
		t.Error("итоговое состояние должно соответствовать последнему применённому разрешению")
	}
}

// TestResolve_StaleResultAfterSignIn — устаревшее разрешение отдаёт
// более свежий снимок только тому же пользователю.
func TestResolve_StaleResultAfterSignIn(t *testing.T) {
	tests := []struct {
		name      string
		credsUser string
		wantIn    bool
	}{
		{"тот же пользователь", "user-amani@example.com", true},
		{"другой пользователь", "u-other", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			p.users["at-old"] = supabase.User{ID: tt.credsUser}
			p.entered = make(chan struct{})
			p.release = make(chan struct{})
			s := newTestStore(p, Options{})
			defer s.Close()

			slow := make(chan model.Snapshot, 1)
			go func() {
				slow <- s.Resolve(context.Background(), "k1", validCreds("at-old"))
			}()
			<-p.entered

			signedIn, err := s.SignIn(context.Background(), "k1", "amani@example.com", "secret")
			if err != nil {
				t.Fatalf("SignIn: %v", err)
			}

			close(p.release)
			got := <-slow

			if got.Loading {
				t.Fatal("устаревшее разрешение не должно давать Loading")
			}
			if got.Seq != signedIn.Seq {
				t.Errorf("Seq = %d, ожидался %d", got.Seq, signedIn.Seq)
			}
			if got.LoggedIn() != tt.wantIn {
				t.Fatalf("LoggedIn = %v, ожидалось %v", got.LoggedIn(), tt.wantIn)
			}
			if tt.wantIn && got.AccessToken() != "at-amani@example.com" {
				t.Errorf("AccessToken = %q", got.AccessToken())
			}
			if !s.Snapshot("k1").LoggedIn() {
				t.Error("снимок ключа должен остаться за последним входом")
			}
		})
	}
}

func TestResolve_ExpiredTokenRefreshed(t *testing.T) {
	p := newFakeProvider()
	p.refresh["rt-old"] = &supabase.TokenResponse{
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
		ExpiresIn:    3600,
		User:         supabase.User{ID: "u-1", Email: "u1@example.com"},
	}
	s := newTestStore(p, Options{})
	defer s.Close()

	sub := s.Subscribe("k1")
	defer sub.Close()

	creds := &model.Session{
		UserID:       "u-1",
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	snap := s.Resolve(context.Background(), "k1", creds)
	if !snap.LoggedIn() {
		t.Fatal("после обновления токена сессия должна присутствовать")
	}
	if snap.AccessToken() != "at-new" || snap.Session.RefreshToken != "rt-new" {
		t.Errorf("токены не обновлены: %+v", snap.Session)
	}
	if ev := receive(t, sub); ev.Kind != EventTokenRefreshed {
		t.Errorf("Kind = %s, ожидался %s", ev.Kind, EventTokenRefreshed)
	}
	// Пользователь обновлённого токена уже известен
	if p.getUserCalls.Load() != 0 {
		t.Error("GetUser не должен вызываться после обновления")
	}
}

func TestResolve_RefreshFailureIsAbsent(t *testing.T) {
	p := newFakeProvider()
	s := newTestStore(p, Options{})
	defer s.Close()

	creds := &model.Session{AccessToken: "at", RefreshToken: "revoked", ExpiresAt: time.Now().Add(-time.Minute)}
	if snap := s.Resolve(context.Background(), "k1", creds); snap.LoggedIn() {
		t.Error("сбой обновления должен давать отсутствующую сессию")
	}
}

func TestResolve_ConcurrentRefreshSharesCall(t *testing.T) {
	p := newFakeProvider()
	p.refresh["rt-old"] = &supabase.TokenResponse{
		AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 3600,
		User: supabase.User{ID: "u-1"},
	}
	s := newTestStore(p, Options{})
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			creds := &model.Session{AccessToken: "at-old", RefreshToken: "rt-old", ExpiresAt: time.Now().Add(-time.Minute)}
			if snap := s.Resolve(context.Background(), "k1", creds); !snap.LoggedIn() {
				t.Error("ожидалась действующая сессия")
			}
		}()
	}
	wg.Wait()

	if n := p.refreshCalls.Load(); n != 1 {
		t.Errorf("Refresh вызван %d раз, ожидался 1", n)
	}
}

func TestInitialSession_PublishedOnlyOnChange(t *testing.T) {
	p := newFakeProvider()
	p.users["at-1"] = supabase.User{ID: "u-1"}
	s := newTestStore(p, Options{})
	defer s.Close()

	sub := s.Subscribe("k1")
	defer sub.Close()

	s.Resolve(context.Background(), "k1", nil)
	if ev := receive(t, sub); ev.Kind != EventInitialSession || ev.Snapshot.LoggedIn() {
		t.Errorf("первое разрешение: %+v", ev)
	}

	s.Resolve(context.Background(), "k1", nil)
	assertNoEvent(t, sub)

	s.Resolve(context.Background(), "k1", validCreds("at-1"))
	if ev := receive(t, sub); !ev.Snapshot.LoggedIn() {
		t.Error("смена присутствия сессии должна публиковаться")
	}
}

func TestSignIn(t *testing.T) {
	s := newTestStore(newFakeProvider(), Options{})
	defer s.Close()

	sub := s.Subscribe("k1")
	defer sub.Close()
	other := s.Subscribe("k2")
	defer other.Close()

	snap, err := s.SignIn(context.Background(), "k1", "amani@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !snap.LoggedIn() || snap.UserID() != "user-amani@example.com" {
		t.Errorf("снимок после входа: %+v", snap)
	}
	if snap.Session.ExpiresAt.Before(time.Now().Add(50 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, ожидалось ~1ч", snap.Session.ExpiresAt)
	}

	ev := receive(t, sub)
	if ev.Kind != EventSignedIn || ev.Key != "k1" {
		t.Errorf("событие: %+v", ev)
	}
	assertNoEvent(t, other)

	// Токен после входа проверяется из кэша
	s.Resolve(context.Background(), "k1", snap.Session)
	if n := s.provider.(*fakeProvider).getUserCalls.Load(); n != 0 {
		t.Errorf("GetUser вызван %d раз", n)
	}
}

func TestSignIn_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apperr.AuthCode
	}{
		{"неверные учётные данные", &supabase.APIError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}, apperr.AuthInvalidCredentials},
		{"400 без кода", &supabase.APIError{Status: 400, Message: "Invalid login credentials"}, apperr.AuthInvalidCredentials},
		{"сетевой сбой", &supabase.APIError{Message: "connection refused"}, apperr.AuthProviderUnavailable},
		{"5xx", &supabase.APIError{Status: 503, Message: "unavailable"}, apperr.AuthProviderUnavailable},
		{"неизвестная ошибка", errors.New("boom"), apperr.AuthProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			p.signInErr = tt.err
			s := newTestStore(p, Options{})
			defer s.Close()

			snap, err := s.SignIn(context.Background(), "k1", "a@b.c", "x")
			ae, ok := apperr.AsAuth(err)
			if !ok {
				t.Fatalf("ожидалась AuthError, получено %v", err)
			}
			if ae.Code != tt.wantCode {
				t.Errorf("Code = %s, ожидался %s", ae.Code, tt.wantCode)
			}
			if snap.LoggedIn() {
				t.Error("после неудачного входа сессии быть не должно")
			}
		})
	}
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name     string
		resp     *supabase.SignUpResponse
		err      error
		wantCode apperr.AuthCode
	}{
		{
			name: "новый пользователь",
			resp: &supabase.SignUpResponse{User: supabase.User{ID: "u-1", Identities: []supabase.Identity{{ID: "i", Provider: "email"}}}},
		},
		{
			name:     "существующий e-mail (пустые identities)",
			resp:     &supabase.SignUpResponse{User: supabase.User{ID: "u-1"}},
			wantCode: apperr.AuthUserAlreadyExists,
		},
		{
			name:     "код user_already_exists",
			err:      &supabase.APIError{Status: 422, Code: "user_already_exists", Message: "User already registered"},
			wantCode: apperr.AuthUserAlreadyExists,
		},
		{
			name:     "слабый пароль",
			err:      &supabase.APIError{Status: 422, Code: "weak_password", Message: "Password should be at least 6 characters."},
			wantCode: apperr.AuthWeakPassword,
		},
		{
			name:     "старая форма без кода",
			err:      &supabase.APIError{Status: 400, Message: "Password should be at least 6 characters"},
			wantCode: apperr.AuthWeakPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			p.signUpResp = tt.resp
			p.signUpErr = tt.err
			s := newTestStore(p, Options{})
			defer s.Close()

			err := s.SignUp(context.Background(), "a@b.c", "secret1")
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("SignUp: %v", err)
				}
				return
			}
			ae, ok := apperr.AsAuth(err)
			if !ok {
				t.Fatalf("ожидалась AuthError, получено %v", err)
			}
			if ae.Code != tt.wantCode {
				t.Errorf("Code = %s, ожидался %s", ae.Code, tt.wantCode)
			}
		})
	}
}

func TestSignOut(t *testing.T) {
	s := newTestStore(newFakeProvider(), Options{})
	defer s.Close()

	snap, err := s.SignIn(context.Background(), "k1", "a@b.c", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	sub := s.Subscribe("k1")
	defer sub.Close()

	if err := s.SignOut(context.Background(), "k1", snap.Session); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if ev := receive(t, sub); ev.Kind != EventSignedOut || ev.Snapshot.LoggedIn() {
		t.Errorf("событие: %+v", ev)
	}
	if s.Snapshot("k1").LoggedIn() {
		t.Error("после выхода сессии быть не должно")
	}
}

func TestSignOut_ProviderFailureStillSignsOut(t *testing.T) {
	p := newFakeProvider()
	p.signOutErr = &supabase.APIError{Status: 500, Message: "boom"}
	s := newTestStore(p, Options{})
	defer s.Close()

	snap, _ := s.SignIn(context.Background(), "k1", "a@b.c", "secret1")

	err := s.SignOut(context.Background(), "k1", snap.Session)
	ae, ok := apperr.AsAuth(err)
	if !ok || ae.Code != apperr.AuthSignOutFailed {
		t.Fatalf("ожидалась AuthError signout_failed, получено %v", err)
	}
	if s.Snapshot("k1").LoggedIn() {
		t.Error("локальная сессия должна быть очищена даже при сбое провайдера")
	}
}

func TestSignOut_WithoutSession(t *testing.T) {
	p := newFakeProvider()
	s := newTestStore(p, Options{})
	defer s.Close()

	if err := s.SignOut(context.Background(), "k1", nil); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if p.signOutCalls.Load() != 0 {
		t.Error("без сессии провайдер не вызывается")
	}
	if snap := s.Snapshot("k1"); snap.Loading || snap.LoggedIn() {
		t.Errorf("снимок после выхода: %+v", snap)
	}
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	s := newTestStore(newFakeProvider(), Options{})
	defer s.Close()

	sub := s.Subscribe("k1")
	sub.Close()
	sub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("канал должен быть закрыт")
	}

	// Закрытая подписка больше не получает события
	s.Resolve(context.Background(), "k1", nil)
	if len(s.subs) != 0 {
		t.Errorf("подписки ключа не удалены: %d", len(s.subs))
	}
}

func TestStore_CloseClosesSubscriptions(t *testing.T) {
	s := newTestStore(newFakeProvider(), Options{})

	a := s.Subscribe("k1")
	b := s.Subscribe("k2")
	s.Close()
	s.Close()

	for _, sub := range []*Subscription{a, b} {
		if _, ok := <-sub.Events(); ok {
			t.Error("канал должен быть закрыт после Close хранилища")
		}
		sub.Close()
	}

	late := s.Subscribe("k1")
	if _, ok := <-late.Events(); ok {
		t.Error("подписка после Close должна быть закрытой")
	}
	late.Close()
}

func TestPublish_DropsOldestWhenFull(t *testing.T) {
	s := newTestStore(newFakeProvider(), Options{Buffer: 1})
	defer s.Close()

	sub := s.Subscribe("k1")
	defer sub.Close()

	if _, err := s.SignIn(context.Background(), "k1", "a@b.c", "x"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := s.SignOut(context.Background(), "k1", nil); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	if ev := receive(t, sub); ev.Kind != EventSignedOut {
		t.Errorf("Kind = %s, ожидалось последнее событие %s", ev.Kind, EventSignedOut)
	}
	assertNoEvent(t, sub)
}

func TestMapProviderError_Message(t *testing.T) {
	err := mapProviderError(&supabase.APIError{Status: 400, Code: "invalid_credentials"}, apperr.AuthUnknown)
	if err.Message != "Email ou mot de passe incorrect" {
		t.Errorf("Message = %q", err.Message)
	}
	if !errors.Is(err, err.Err) {
		t.Error("исходная ошибка должна сохраняться в цепочке")
	}
}
