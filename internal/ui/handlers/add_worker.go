// add_worker.go — страница добавления записи.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/service"
	"github.com/bigkaa/workerreg/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/workerreg/internal/ui/middleware"
	"github.com/bigkaa/workerreg/internal/ui/pages"
)

// AddWorkerHandler — обработчики /add-worker.
type AddWorkerHandler struct {
	workers *service.WorkerService
	logger  *slog.Logger
}

// NewAddWorkerHandler создаёт новый AddWorkerHandler.
func NewAddWorkerHandler(workers *service.WorkerService, logger *slog.Logger) *AddWorkerHandler {
	return &AddWorkerHandler{
		workers: workers,
		logger:  logger.With(slog.String("component", "ui_add_worker")),
	}
}

// HandleForm — GET /add-worker
func (h *AddWorkerHandler) HandleForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, pages.AddWorker(pages.AddWorkerData{
		Form: model.NewWorkerForm(),
	}), h.logger)
}

// HandleSubmit — POST /add-worker
// Успех очищает форму и показывает сообщение; ошибка сохраняет введённые значения.
func (h *AddWorkerHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Некорректная форма", http.StatusBadRequest)
		return
	}

	form := workerFormFromRequest(r)
	snap := uimiddleware.SnapshotFromContext(r.Context())

	if _, err := h.workers.Create(r.Context(), snap, form); err != nil {
		renderPage(w, r, http.StatusOK, pages.AddWorker(pages.AddWorkerData{
			Form: form,
			Message: &pages.Message{
				Kind: pages.KindError,
				Text: i18n.Tf(r.Context(), "add.error", apperr.UserMessage(err)),
			},
		}), h.logger)
		return
	}

	renderPage(w, r, http.StatusOK, pages.AddWorker(pages.AddWorkerData{
		Form: model.NewWorkerForm(),
		Message: &pages.Message{
			Kind: pages.KindSuccess,
			Text: i18n.T(r.Context(), "add.success"),
		},
	}), h.logger)
}

// workerFormFromRequest читает поля записи из разобранной формы.
func workerFormFromRequest(r *http.Request) model.WorkerForm {
	return model.WorkerForm{
		FamilyName: r.PostFormValue("nom"),
		PostName:   r.PostFormValue("postnom"),
		GivenName:  r.PostFormValue("prenom"),
		Phone:      r.PostFormValue("telephone"),
		Department: r.PostFormValue("departement"),
		Education:  r.PostFormValue("niveau_etudes"),
		Gender:     r.PostFormValue("sexe"),
		JoinDate:   r.PostFormValue("date_adhesion"),
	}
}
