// client.go — HTTP-клиент к BaaS.
// Каждый запрос несёт заголовок apikey (публичный ключ проекта).
// Запросы от имени пользователя дополнительно несут Authorization: Bearer <access token>;
// без токена пользователя используется публичный ключ (роль anon).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client — HTTP-клиент к API провайдера аутентификации и REST-шлюзу.
type Client struct {
	baseURL string // Базовый URL проекта (без trailing slash)
	anonKey string // Публичный API-ключ

	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент BaaS.
// baseURL — базовый URL проекта (например, https://xyz.supabase.co).
// anonKey — публичный (anon) ключ проекта.
// httpClient — HTTP-клиент (nil — клиент с таймаутом 30s).
func New(baseURL, anonKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "supabase_client")),
	}
}

// BaseURL возвращает базовый URL проекта.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// authURL возвращает URL endpoint провайдера аутентификации.
func (c *Client) authURL(path string) string {
	return c.baseURL + "/auth/v1" + path
}

// restURL возвращает URL таблицы REST-шлюза.
func (c *Client) restURL(table string) string {
	return c.baseURL + "/rest/v1/" + table
}

// --- HTTP helpers ---

// do выполняет HTTP-запрос к BaaS.
// token — access token пользователя; пустой — запрос от имени anon.
func (c *Client) do(ctx context.Context, method, reqURL, token string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	return resp, nil
}

// decodeResponse декодирует JSON ответ в target.
// Ответ со статусом вне 2xx превращается в *APIError.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("декодирование ответа BaaS: %w", err)
		}
	}

	return nil
}

// checkResponse проверяет статус ответа (для запросов без тела ответа).
func checkResponse(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// readAPIError разбирает тело ошибки GoTrue или PostgREST.
func readAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{Status: resp.StatusCode}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.code()
		apiErr.Message = body.message()
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// AsAPIError извлекает *APIError из цепочки ошибок.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// --- Readiness checker ---

// CheckReady проверяет доступность провайдера аутентификации через /auth/v1/health.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.authURL("/health"), "", nil, nil)
	if err != nil {
		return "fail", fmt.Sprintf("провайдер аутентификации недоступен: %v", err)
	}
	if err := checkResponse(resp); err != nil {
		return "fail", fmt.Sprintf("провайдер аутентификации недоступен: %v", err)
	}

	return "ok", "провайдер аутентификации доступен"
}
