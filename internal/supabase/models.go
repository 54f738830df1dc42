// Пакет supabase — HTTP-клиент к BaaS: провайдер аутентификации (GoTrue, /auth/v1)
// и REST-шлюз таблиц (PostgREST, /rest/v1).
// models.go — модели данных API.
package supabase

import (
	"fmt"
	"time"
)

// TokenResponse — ответ на выдачу или обновление токена.
type TokenResponse struct {
	AccessToken  string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: структура токена OAuth2
	User         User   `json:"user"`
}

// Expiry возвращает время истечения access token.
// Если провайдер не вернул expires_at, вычисляется из expires_in.
func (t *TokenResponse) Expiry(now time.Time) time.Time {
	if t.ExpiresAt > 0 {
		return time.Unix(t.ExpiresAt, 0)
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// User — пользователь провайдера аутентификации.
type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Identities []Identity `json:"identities"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Identity — привязанная учётная запись пользователя.
type Identity struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

// SignUpResponse — ответ на регистрацию.
// Без автоподтверждения провайдер возвращает только пользователя,
// с автоподтверждением — пользователя и токены.
type SignUpResponse struct {
	User    User
	Session *TokenResponse
}

// Registered сообщает, создан ли новый пользователь.
// Для существующего e-mail провайдер отвечает пользователем с пустым списком identities.
func (r *SignUpResponse) Registered() bool {
	return len(r.User.Identities) > 0
}

// signUpBody — совмещённая форма ответа /signup (пользователь или сессия).
type signUpBody struct {
	User
	AccessToken  string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: структура токена OAuth2
	SessionUser  *User  `json:"user"`
}

// credentials — тело запросов /signup и /token?grant_type=password.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // G117: учётные данные пользователя
}

// refreshBody — тело запроса /token?grant_type=refresh_token.
type refreshBody struct {
	RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: структура токена OAuth2
}

// APIError — ошибка, возвращённая BaaS.
// GoTrue и PostgREST используют разные формы тела; обе сводятся к Status/Code/Message.
type APIError struct {
	// Status — HTTP статус ответа (0 — сетевой сбой)
	Status int
	// Code — машиночитаемый код провайдера (invalid_credentials, 23505, PGRST116, ...)
	Code string
	// Message — текст провайдера
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("BaaS вернул статус %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("BaaS вернул статус %d: %s", e.Status, e.Message)
}

// errorBody — объединение форм ошибок GoTrue и PostgREST.
type errorBody struct {
	// PostgREST: строковый код, GoTrue: числовой HTTP-код
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Details          string `json:"details"`
}

func (b *errorBody) code() string {
	if b.ErrorCode != "" {
		return b.ErrorCode
	}
	if s, ok := b.Code.(string); ok && s != "" {
		return s
	}
	return b.Error
}

func (b *errorBody) message() string {
	for _, m := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}
