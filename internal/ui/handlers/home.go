// home.go — домашняя страница.
package handlers

import (
	"log/slog"
	"net/http"

	uimiddleware "github.com/bigkaa/workerreg/internal/ui/middleware"
	"github.com/bigkaa/workerreg/internal/ui/pages"
)

// HomeHandler — обработчик домашней страницы.
type HomeHandler struct {
	logger *slog.Logger
}

// NewHomeHandler создаёт новый HomeHandler.
func NewHomeHandler(logger *slog.Logger) *HomeHandler {
	return &HomeHandler{
		logger: logger.With(slog.String("component", "ui_home")),
	}
}

// HandleHome — GET /home
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	snap := uimiddleware.SnapshotFromContext(r.Context())
	renderPage(w, r, http.StatusOK, pages.Home(pages.HomeData{Session: snap.Session}), h.logger)
}

// HandleRoot — GET /
// Точка входа приложения — страница аутентификации.
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/auth", http.StatusFound)
}
