// auth.go — операции провайдера аутентификации (GoTrue API).
package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// SignUp регистрирует пользователя по e-mail и паролю.
func (c *Client) SignUp(ctx context.Context, email, password string) (*SignUpResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, c.authURL("/signup"), "", credentials{Email: email, Password: password}, nil)
	if err != nil {
		return nil, err
	}

	var body signUpBody
	if err := decodeResponse(resp, &body); err != nil {
		return nil, fmt.Errorf("SignUp: %w", err)
	}

	result := &SignUpResponse{User: body.User}
	if body.AccessToken != "" {
		session := &TokenResponse{
			AccessToken:  body.AccessToken,
			TokenType:    body.TokenType,
			ExpiresIn:    body.ExpiresIn,
			ExpiresAt:    body.ExpiresAt,
			RefreshToken: body.RefreshToken,
		}
		if body.SessionUser != nil {
			session.User = *body.SessionUser
			result.User = *body.SessionUser
		}
		result.Session = session
	}

	c.logger.Debug("Регистрация выполнена",
		slog.String("user_id", result.User.ID),
		slog.Bool("registered", result.Registered()),
	)

	return result, nil
}

// SignIn выполняет вход по паролю (grant_type=password).
func (c *Client) SignIn(ctx context.Context, email, password string) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, c.authURL("/token?grant_type=password"), "",
		credentials{Email: email, Password: password}, nil)
	if err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := decodeResponse(resp, &token); err != nil {
		return nil, fmt.Errorf("SignIn: %w", err)
	}

	return &token, nil
}

// Refresh обменивает refresh token на новую пару токенов.
// Провайдер ротирует refresh token: старый становится недействительным.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, c.authURL("/token?grant_type=refresh_token"), "",
		refreshBody{RefreshToken: refreshToken}, nil)
	if err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := decodeResponse(resp, &token); err != nil {
		return nil, fmt.Errorf("Refresh: %w", err)
	}

	c.logger.Debug("Токен пользователя обновлён", slog.String("user_id", token.User.ID))

	return &token, nil
}

// GetUser возвращает пользователя, которому принадлежит access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, c.authURL("/user"), accessToken, nil, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeResponse(resp, &user); err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}

	return &user, nil
}

// SignOut отзывает сессию пользователя.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.do(ctx, http.MethodPost, c.authURL("/logout"), accessToken, nil, nil)
	if err != nil {
		return err
	}

	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("SignOut: %w", err)
	}

	return nil
}
