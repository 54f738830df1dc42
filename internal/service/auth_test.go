package service

import (
	"context"
	"testing"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/session"
	"github.com/bigkaa/workerreg/internal/supabase"
)

// stubProvider — провайдер, принимающий любые учётные данные.
type stubProvider struct {
	signIns int
	signUps int
}

func (p *stubProvider) SignUp(_ context.Context, email, _ string) (*supabase.SignUpResponse, error) {
	p.signUps++
	return &supabase.SignUpResponse{User: supabase.User{
		ID:         "u-" + email,
		Email:      email,
		Identities: []supabase.Identity{{ID: "i-1", Provider: "email"}},
	}}, nil
}

func (p *stubProvider) SignIn(_ context.Context, email, _ string) (*supabase.TokenResponse, error) {
	p.signIns++
	return &supabase.TokenResponse{
		AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600,
		User: supabase.User{ID: "u-" + email, Email: email},
	}, nil
}

func (p *stubProvider) Refresh(context.Context, string) (*supabase.TokenResponse, error) {
	return nil, &supabase.APIError{Status: 400, Code: "invalid_grant"}
}

func (p *stubProvider) GetUser(context.Context, string) (*supabase.User, error) {
	return &supabase.User{ID: "u-1"}, nil
}

func (p *stubProvider) SignOut(context.Context, string) error { return nil }

func newTestAuthService(p *stubProvider) (*AuthService, *session.Store) {
	store := session.New(p, session.Options{}, testLogger())
	return NewAuthService(store, NewFormValidator(), testLogger()), store
}

func TestAuthService_SignUpValidatesFirst(t *testing.T) {
	p := &stubProvider{}
	svc, store := newTestAuthService(p)
	defer store.Close()

	err := svc.SignUp(context.Background(), "amani@example.com", "123")
	if ae, ok := apperr.AsAuth(err); !ok || ae.Code != apperr.AuthWeakPassword {
		t.Fatalf("ожидалась weak_password, получено %v", err)
	}
	if p.signUps != 0 {
		t.Error("короткий пароль не должен отправляться провайдеру")
	}

	if err := svc.SignUp(context.Background(), " amani@example.com ", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if p.signUps != 1 {
		t.Errorf("signUps = %d, ожидался 1", p.signUps)
	}
}

func TestAuthService_SignInAndOut(t *testing.T) {
	p := &stubProvider{}
	svc, store := newTestAuthService(p)
	defer store.Close()
	ctx := context.Background()

	if _, err := svc.SignIn(ctx, "k1", "not-an-email", "x"); err == nil {
		t.Fatal("ожидалась ошибка для некорректного email")
	}
	if p.signIns != 0 {
		t.Error("некорректный email не должен отправляться провайдеру")
	}

	snap, err := svc.SignIn(ctx, "k1", "amani@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if snap.UserID() != "u-amani@example.com" {
		t.Errorf("UserID = %q", snap.UserID())
	}

	if err := svc.SignOut(ctx, "k1", snap.Session); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if store.Snapshot("k1").LoggedIn() {
		t.Error("после выхода сессии быть не должно")
	}
}
