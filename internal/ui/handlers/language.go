// language.go — обработчик переключения языка UI.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/bigkaa/workerreg/internal/ui/i18n"
)

// HandleSetLanguage обрабатывает POST /set-language.
// Устанавливает cookie "lang" и перенаправляет обратно.
// Параметр lang: "fr" или "en" (из формы или query).
func HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if !i18n.IsSupported(lang) {
		lang = i18n.LangFR
	}

	// Устанавливаем cookie "lang" на 1 год
	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: false, // JS может читать для UI-логики
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
	})

	http.Redirect(w, r, backTarget(r), http.StatusSeeOther)
}

// backTarget — путь страницы, с которой пришёл запрос (Referer).
// Берётся только путь с запросом, чужие хосты не используются.
func backTarget(r *http.Request) string {
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/auth"
	}
	target := ref.Path
	if ref.RawQuery != "" {
		target += "?" + ref.RawQuery
	}
	return target
}
