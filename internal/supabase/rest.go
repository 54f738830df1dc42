// rest.go — операции REST-шлюза таблиц (PostgREST API).
// Запросы выполняются от имени пользователя: access token берётся из контекста
// (WithAccessToken), политики строк применяются на стороне хранилища.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type accessTokenKey struct{}

// WithAccessToken возвращает контекст с access token пользователя.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext извлекает access token пользователя из контекста.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// returnRepresentation — просим PostgREST вернуть затронутые строки.
var returnRepresentation = map[string]string{"Prefer": "return=representation"}

// Select выбирает строки таблицы. query — параметры PostgREST
// (select, order, фильтры вида column=eq.value).
func (c *Client) Select(ctx context.Context, table string, query url.Values, target any) error {
	reqURL := c.restURL(table)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, reqURL, AccessTokenFromContext(ctx), nil, nil)
	if err != nil {
		return err
	}

	if err := decodeResponse(resp, target); err != nil {
		return fmt.Errorf("Select %s: %w", table, err)
	}
	return nil
}

// Insert вставляет строку и декодирует созданные строки (массив) в target.
func (c *Client) Insert(ctx context.Context, table string, row, target any) error {
	resp, err := c.do(ctx, http.MethodPost, c.restURL(table), AccessTokenFromContext(ctx), row, returnRepresentation)
	if err != nil {
		return err
	}

	if err := decodeResponse(resp, target); err != nil {
		return fmt.Errorf("Insert %s: %w", table, err)
	}
	return nil
}

// Update изменяет строки, отобранные query, и возвращает число затронутых строк.
func (c *Client) Update(ctx context.Context, table string, query url.Values, patch any) (int, error) {
	resp, err := c.do(ctx, http.MethodPatch, c.restURL(table)+"?"+query.Encode(),
		AccessTokenFromContext(ctx), patch, returnRepresentation)
	if err != nil {
		return 0, err
	}

	var rows []json.RawMessage
	if err := decodeResponse(resp, &rows); err != nil {
		return 0, fmt.Errorf("Update %s: %w", table, err)
	}
	return len(rows), nil
}

// Delete удаляет строки, отобранные query, и возвращает число удалённых строк.
func (c *Client) Delete(ctx context.Context, table string, query url.Values) (int, error) {
	resp, err := c.do(ctx, http.MethodDelete, c.restURL(table)+"?"+query.Encode(),
		AccessTokenFromContext(ctx), nil, returnRepresentation)
	if err != nil {
		return 0, err
	}

	var rows []json.RawMessage
	if err := decodeResponse(resp, &rows); err != nil {
		return 0, fmt.Errorf("Delete %s: %w", table, err)
	}
	return len(rows), nil
}

// Eq возвращает значение фильтра равенства PostgREST (eq.value).
func Eq(value string) string {
	return "eq." + value
}
