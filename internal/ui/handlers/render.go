// Пакет handlers — HTTP-обработчики веб-интерфейса.
// render.go — общая отрисовка страниц.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
)

// renderPage отрисовывает страницу с заданным статусом.
// Ошибка шаблона логируется: заголовки к этому моменту уже отправлены.
func renderPage(w http.ResponseWriter, r *http.Request, status int, page templ.Component, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		logger.Error("Ошибка рендеринга страницы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
