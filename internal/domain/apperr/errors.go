// Пакет apperr — закрытый набор прикладных ошибок.
//
// Два вида:
//   - AuthError — ошибки провайдера аутентификации и сессии
//   - RepositoryError — ошибки хранилища записей (list/insert/update/delete)
//
// Каждая ошибка несёт машиночитаемый код и человекочитаемое (французское) сообщение.
// Только эти виды пересекают границу между слоями хранения и обработчиками.
package apperr

import (
	"errors"
	"fmt"
)

// AuthCode — код ошибки аутентификации.
type AuthCode string

const (
	AuthInvalidCredentials  AuthCode = "invalid_credentials"
	AuthUserAlreadyExists   AuthCode = "user_already_exists"
	AuthWeakPassword        AuthCode = "weak_password"
	AuthNotAuthenticated    AuthCode = "not_authenticated"
	AuthSessionFetchFailed  AuthCode = "session_fetch_failed"
	AuthProviderUnavailable AuthCode = "provider_unavailable"
	AuthSignOutFailed       AuthCode = "signout_failed"
	AuthUnknown             AuthCode = "unknown"
)

// AuthError — ошибка провайдера аутентификации.
type AuthError struct {
	Code    AuthCode
	Message string
	// Err — исходная ошибка (для логов), может быть nil
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError создаёт AuthError со стандартным сообщением для кода.
func NewAuthError(code AuthCode, cause error) *AuthError {
	return &AuthError{Code: code, Message: authMessages[code], Err: cause}
}

// ErrNotAuthenticated — действие требует сессии.
var ErrNotAuthenticated = &AuthError{Code: AuthNotAuthenticated, Message: authMessages[AuthNotAuthenticated]}

var authMessages = map[AuthCode]string{
	AuthInvalidCredentials:  "Email ou mot de passe incorrect",
	AuthUserAlreadyExists:   "Un utilisateur avec cet email existe déjà.",
	AuthWeakPassword:        "Le mot de passe doit contenir au moins 6 caractères",
	AuthNotAuthenticated:    "Utilisateur non connecté",
	AuthSessionFetchFailed:  "Impossible de récupérer la session",
	AuthProviderUnavailable: "Service d'authentification indisponible",
	AuthSignOutFailed:       "Erreur lors de la déconnexion",
	AuthUnknown:             "Erreur inconnue",
}

// Op — операция хранилища записей.
type Op string

const (
	OpList   Op = "list"
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// RepoCode — код ошибки хранилища записей.
type RepoCode string

const (
	RepoUnavailable  RepoCode = "unavailable"
	RepoNotFound     RepoCode = "not_found"
	RepoConflict     RepoCode = "conflict"
	RepoRejected     RepoCode = "rejected"
	RepoInvalidInput RepoCode = "invalid_input"
	RepoDecodeFailed RepoCode = "decode_failed"
	RepoUnknown      RepoCode = "unknown"
)

// RepositoryError — ошибка операции над хранилищем записей.
type RepositoryError struct {
	Op      Op
	Code    RepoCode
	Message string
	Err     error
}

func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repository %s %s: %s: %v", e.Op, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("repository %s %s: %s", e.Op, e.Code, e.Message)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// NewRepositoryError создаёт RepositoryError. Пустое сообщение заменяется стандартным.
func NewRepositoryError(op Op, code RepoCode, message string, cause error) *RepositoryError {
	if message == "" {
		message = repoMessages[code]
	}
	return &RepositoryError{Op: op, Code: code, Message: message, Err: cause}
}

var repoMessages = map[RepoCode]string{
	RepoUnavailable:  "Base de données indisponible",
	RepoNotFound:     "Travailleur introuvable",
	RepoConflict:     "Conflit avec un enregistrement existant",
	RepoRejected:     "Opération refusée par le serveur",
	RepoInvalidInput: "Données invalides",
	RepoDecodeFailed: "Réponse illisible du serveur",
	RepoUnknown:      "Erreur inconnue",
}

// AsAuth извлекает AuthError из цепочки ошибок.
func AsAuth(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// AsRepository извлекает RepositoryError из цепочки ошибок.
func AsRepository(err error) (*RepositoryError, bool) {
	var re *RepositoryError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsRepoCode проверяет код RepositoryError в цепочке.
func IsRepoCode(err error, code RepoCode) bool {
	re, ok := AsRepository(err)
	return ok && re.Code == code
}

// UserMessage возвращает сообщение для пользователя. Ошибки вне закрытого набора
// превращаются в «Erreur inconnue».
func UserMessage(err error) string {
	if ae, ok := AsAuth(err); ok {
		return ae.Message
	}
	if re, ok := AsRepository(err); ok {
		return re.Message
	}
	return authMessages[AuthUnknown]
}
