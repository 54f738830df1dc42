// auth.go — JWT middleware для JSON API.
// Принимает access token провайдера аутентификации (Bearer): асимметричные
// ключи проверяются через JWKS провайдера, HS256 — через общий секрет (если задан).
// Из claims строится снимок сессии для сервисного слоя.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/workerreg/internal/api/errors"
	"github.com/bigkaa/workerreg/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// RoleAuthenticated — роль пользователя с подтверждённой сессией.
const RoleAuthenticated = "authenticated"

// AuthClaims — извлечённые claims access token.
// Помещаются в контекст запроса для downstream handlers.
type AuthClaims struct {
	// Subject — sub из JWT (id пользователя провайдера).
	Subject string
	// Email — email из JWT.
	Email string
	// Role — роль базы данных (authenticated, anon, service_role).
	Role string
	// SessionID — id сессии провайдера.
	SessionID string
	// ExpiresAt — время истечения токена.
	ExpiresAt time.Time
	// Token — исходный токен, передаётся REST-шлюзу от имени пользователя.
	Token string
}

// Snapshot возвращает снимок сессии, соответствующий токену.
func (c *AuthClaims) Snapshot() model.Snapshot {
	return model.Snapshot{Session: &model.Session{
		UserID:      c.Subject,
		Email:       c.Email,
		AccessToken: c.Token,
		ExpiresAt:   c.ExpiresAt,
	}}
}

// providerClaims — raw claims access token провайдера.
type providerClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// JWTAuth — middleware для JWT-аутентификации.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	secret    []byte
	logger    *slog.Logger
	issuer    string
	jwtLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS провайдера.
// jwksURL — URL JWKS endpoint провайдера.
// issuer — ожидаемый issuer JWT (обычно <url>/auth/v1).
// secret — общий секрет HS256 (пустой — HS256 не принимается).
// jwksRefreshInterval — интервал обновления JWKS-ключей (WR_JWKS_REFRESH_INTERVAL).
// jwtLeeway — допустимое отклонение времени при проверке JWT (WR_JWT_LEEWAY).
func NewJWTAuth(
	jwksURL string,
	issuer string,
	secret string,
	httpClient *http.Client,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если провайдер ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	auth := NewJWTAuthWithKeyfunc(k, issuer, secret, logger)
	auth.jwtLeeway = jwtLeeway
	return auth, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer, secret string, logger *slog.Logger) *JWTAuth {
	auth := &JWTAuth{
		jwks:   kf,
		logger: logger.With(slog.String("component", "jwt_auth")),
		issuer: issuer,
	}
	if secret != "" {
		auth.secret = []byte(secret)
	}
	return auth
}

// validMethods — принимаемые алгоритмы подписи.
func (j *JWTAuth) validMethods() []string {
	methods := []string{"RS256", "ES256"}
	if j.secret != nil {
		methods = append(methods, "HS256")
	}
	return methods
}

// keyFunc выбирает ключ проверки: секрет для HS256, иначе JWKS.
func (j *JWTAuth) keyFunc(ctx context.Context) jwt.Keyfunc {
	jwksFunc := j.jwks.KeyfuncCtx(ctx)
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			if j.secret == nil {
				return nil, fmt.Errorf("HS256 не разрешён без WR_JWT_SECRET")
			}
			return j.secret, nil
		}
		return jwksFunc(token)
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись, проверяет роль authenticated
// и помещает claims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			rawClaims := &providerClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods(j.validMethods()),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.keyFunc(r.Context()), parserOpts...)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			// anon-ключ и service_role не являются сессией пользователя
			if rawClaims.Role != RoleAuthenticated {
				apierrors.Forbidden(w, fmt.Sprintf("Недопустимая роль токена: %q", rawClaims.Role))
				return
			}

			claims := &AuthClaims{
				Subject:   subject,
				Email:     rawClaims.Email,
				Role:      rawClaims.Role,
				SessionID: rawClaims.SessionID,
				Token:     tokenString,
			}
			if rawClaims.ExpiresAt != nil {
				claims.ExpiresAt = rawClaims.ExpiresAt.Time
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SnapshotFromContext возвращает снимок сессии из claims запроса.
// Без claims — разрешённый отсутствующий снимок.
func SnapshotFromContext(ctx context.Context) model.Snapshot {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return model.Snapshot{}
	}
	return claims.Snapshot()
}

// --- ReadinessChecker для JWKS ---

// JWKSReadinessChecker — проверка доступности JWKS endpoint провайдера.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности JWKS.
func NewJWKSReadinessChecker(jwksURL string, timeout time.Duration) *JWKSReadinessChecker {
	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: timeout},
	}
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}

	// Проект только с HS256 публикует пустой набор ключей
	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
