package session

import (
	"net/http"
	"strings"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/supabase"
)

// mapProviderError переводит ошибку провайдера в AuthError.
// fallback — код для отказов 4xx без распознанного кода.
func mapProviderError(err error, fallback apperr.AuthCode) *apperr.AuthError {
	apiErr, ok := supabase.AsAPIError(err)
	if !ok {
		return apperr.NewAuthError(apperr.AuthProviderUnavailable, err)
	}

	switch apiErr.Code {
	case "invalid_credentials", "invalid_grant":
		return apperr.NewAuthError(apperr.AuthInvalidCredentials, err)
	case "user_already_exists", "email_exists":
		return apperr.NewAuthError(apperr.AuthUserAlreadyExists, err)
	case "weak_password":
		return apperr.NewAuthError(apperr.AuthWeakPassword, err)
	}

	switch {
	case apiErr.Status == 0, apiErr.Status >= http.StatusInternalServerError:
		return apperr.NewAuthError(apperr.AuthProviderUnavailable, err)
	case strings.Contains(strings.ToLower(apiErr.Message), "already registered"):
		return apperr.NewAuthError(apperr.AuthUserAlreadyExists, err)
	case strings.Contains(strings.ToLower(apiErr.Message), "password should be"):
		return apperr.NewAuthError(apperr.AuthWeakPassword, err)
	default:
		return apperr.NewAuthError(fallback, err)
	}
}
