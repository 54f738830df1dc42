// Пакет errors — конструкторы стандартных ошибок JSON API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
)

// Коды ошибок JSON API.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// FromDomain записывает ответ для прикладной ошибки (AuthError, RepositoryError).
// Ошибки вне закрытого набора — 500.
func FromDomain(w http.ResponseWriter, err error) {
	if ae, ok := apperr.AsAuth(err); ok {
		Unauthorized(w, ae.Message)
		return
	}

	re, ok := apperr.AsRepository(err)
	if !ok {
		InternalError(w, apperr.UserMessage(err))
		return
	}

	switch re.Code {
	case apperr.RepoNotFound:
		NotFound(w, re.Message)
	case apperr.RepoConflict:
		Conflict(w, re.Message)
	case apperr.RepoInvalidInput:
		ValidationError(w, re.Message)
	case apperr.RepoRejected:
		Forbidden(w, re.Message)
	case apperr.RepoUnavailable:
		StoreUnavailable(w, re.Message)
	default:
		InternalError(w, re.Message)
	}
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 операция отклонена хранилищем.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт с существующей записью.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// StoreUnavailable — 502 хранилище записей недоступно.
func StoreUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeStoreUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
