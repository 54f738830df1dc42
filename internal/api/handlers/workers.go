// workers.go — обработчики /api/v1/workers.
// Список с фильтром по отделу и поиском, создание, обновление, удаление.
// Доступ: пользователь с действующим access token провайдера.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/workerreg/internal/api/errors"
	"github.com/bigkaa/workerreg/internal/api/middleware"
	"github.com/bigkaa/workerreg/internal/domain/filter"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/service"
)

// workerListResponse — ответ GET /api/v1/workers.
type workerListResponse struct {
	Items    []model.Worker `json:"items"`
	Total    int            `json:"total"`
	Filtered int            `json:"filtered"`
}

// ListWorkers — GET /api/v1/workers?departement=&q=.
// departement применяется в хранилище, q — поиск по полям записи.
func (h *APIHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	snap := middleware.SnapshotFromContext(r.Context())
	criteria := filter.Criteria{
		Department: r.URL.Query().Get("departement"),
		Search:     r.URL.Query().Get("q"),
	}
	if criteria.Department != "" && !model.IsDepartment(criteria.Department) {
		apierrors.ValidationError(w, "Неизвестный отдел: "+criteria.Department)
		return
	}

	workers, err := h.workers.List(r.Context(), snap, model.ListFilter{Department: criteria.Department})
	if err != nil {
		apierrors.FromDomain(w, err)
		return
	}

	visible := filter.Apply(workers, criteria)
	writeJSON(w, http.StatusOK, workerListResponse{
		Items:    visible,
		Total:    len(workers),
		Filtered: len(visible),
	})
}

// CreateWorker — POST /api/v1/workers.
func (h *APIHandler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	form, ok := decodeForm(w, r)
	if !ok {
		return
	}

	created, err := h.workers.Create(r.Context(), middleware.SnapshotFromContext(r.Context()), form)
	if err != nil {
		apierrors.FromDomain(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// UpdateWorker — PUT /api/v1/workers/{id}.
func (h *APIHandler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	form, ok := decodeForm(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	err := h.workers.Update(r.Context(), middleware.SnapshotFromContext(r.Context()), id, form)
	if err != nil {
		h.writeActionError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteWorker — DELETE /api/v1/workers/{id}.
func (h *APIHandler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.workers.Delete(r.Context(), middleware.SnapshotFromContext(r.Context()), id)
	if err != nil {
		h.writeActionError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeActionError пишет ответ для ошибки изменения или удаления.
func (h *APIHandler) writeActionError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrSessionRequired) {
		apierrors.Unauthorized(w, "Требуется действующая сессия")
		return
	}
	h.logger.Debug("Действие над записью отклонено", slog.String("error", err.Error()))
	apierrors.FromDomain(w, err)
}

// decodeForm разбирает тело запроса в форму записи.
func decodeForm(w http.ResponseWriter, r *http.Request) (model.WorkerForm, bool) {
	var form model.WorkerForm
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&form); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return form, false
	}
	return form, true
}
