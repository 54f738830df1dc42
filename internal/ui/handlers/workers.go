// workers.go — страница списка сотрудников: фильтр, панели, изменение и удаление.
// Панели (детали, редактирование, подтверждение удаления) открываются
// параметрами запроса view, edit и confirm; фильтр передаётся в departement и q.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/workerreg/internal/domain/filter"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/service"
	uimiddleware "github.com/bigkaa/workerreg/internal/ui/middleware"
	"github.com/bigkaa/workerreg/internal/ui/pages"
)

// WorkersHandler — обработчики /worker-list.
type WorkersHandler struct {
	workers *service.WorkerService
	notices *NoticeBoard
	// lists — последний успешно загруженный набор по браузеру и отделу.
	// При ошибке загрузки страница показывает его вместе с уведомлением.
	lists  *expirable.LRU[string, []model.Worker]
	logger *slog.Logger
}

// NewWorkersHandler создаёт новый WorkersHandler.
// listCacheSize, listCacheTTL — размер и время жизни кэша последнего списка
// (WR_LIST_CACHE_SIZE, WR_LIST_CACHE_TTL).
func NewWorkersHandler(
	workers *service.WorkerService,
	notices *NoticeBoard,
	listCacheSize int,
	listCacheTTL time.Duration,
	logger *slog.Logger,
) *WorkersHandler {
	return &WorkersHandler{
		workers: workers,
		notices: notices,
		lists:   expirable.NewLRU[string, []model.Worker](listCacheSize, nil, listCacheTTL),
		logger:  logger.With(slog.String("component", "ui_workers")),
	}
}

// criteriaFromRequest читает фильтр из строки запроса.
// Отдел вне справочника игнорируется.
func criteriaFromRequest(r *http.Request) filter.Criteria {
	q := r.URL.Query()
	c := filter.Criteria{
		Department: q.Get("departement"),
		Search:     q.Get("q"),
	}
	if !model.IsDepartment(c.Department) {
		c.Department = ""
	}
	return c
}

// HandleList — GET /worker-list
func (h *WorkersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, nil)
}

// rejectedEdit — отправка формы изменения, отклонённая сервисом.
type rejectedEdit struct {
	id   string
	form model.WorkerForm
}

// renderList загружает набор и отрисовывает список. При rejected панель
// изменения открыта на записи rejected.id с отправленными значениями.
func (h *WorkersHandler) renderList(w http.ResponseWriter, r *http.Request, rejected *rejectedEdit) {
	ctx := r.Context()
	snap := uimiddleware.SnapshotFromContext(ctx)
	key := uimiddleware.DeviceFromContext(ctx)
	criteria := criteriaFromRequest(r)
	cacheKey := string(key) + "|" + criteria.Department

	data := pages.WorkerListData{
		Snapshot: snap,
		Filter:   criteria,
	}

	workers, err := h.workers.List(ctx, snap, model.ListFilter{Department: criteria.Department})
	if err != nil {
		// Остаётся предыдущий набор, если он есть
		workers, _ = h.lists.Get(cacheKey)
		h.notices.Put(key, pages.KindError, "notice.load_failed")
	} else {
		h.lists.Add(cacheKey, workers)
	}

	data.Notice = h.notices.Take(ctx, key)
	data.Total = len(workers)
	data.Workers = filter.Apply(workers, criteria)

	q := r.URL.Query()
	data.Viewing = findWorker(workers, q.Get("view"))
	// Изменение и удаление доступны только при активной сессии
	if snap.LoggedIn() {
		data.Editing = findWorker(workers, q.Get("edit"))
		data.Confirming = findWorker(workers, q.Get("confirm"))
	}
	if rejected != nil {
		data.Viewing, data.Confirming = nil, nil
		data.Editing = findWorker(workers, rejected.id)
		data.EditForm = &rejected.form
	}

	renderPage(w, r, http.StatusOK, pages.WorkerList(data), h.logger)
}

// HandleEdit — POST /worker-list/{id}/edit
func (h *WorkersHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Некорректная форма", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	form := workerFormFromRequest(r)
	err := h.workers.Update(ctx, uimiddleware.SnapshotFromContext(ctx), id, form)
	if err != nil && !errors.Is(err, service.ErrSessionRequired) {
		// Панель остаётся открытой с введёнными значениями
		h.notices.Put(uimiddleware.DeviceFromContext(ctx), pages.KindError, "notice.update_failed")
		h.renderList(w, r, &rejectedEdit{id: id, form: form})
		return
	}
	h.finishAction(w, r, err, "notice.updated", "notice.update_failed")
}

// HandleDelete — POST /worker-list/{id}/delete
func (h *WorkersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	err := h.workers.Delete(ctx, uimiddleware.SnapshotFromContext(ctx), id)
	h.finishAction(w, r, err, "notice.deleted", "notice.delete_failed")
}

// finishAction кладёт уведомление по результату действия и возвращает
// на список с тем же фильтром. Отказ без сессии проходит молча.
func (h *WorkersHandler) finishAction(w http.ResponseWriter, r *http.Request, err error, okKey, failKey string) {
	key := uimiddleware.DeviceFromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrSessionRequired):
		h.logger.Debug("Действие без сессии отклонено",
			slog.String("path", r.URL.Path),
		)
	case err != nil:
		h.notices.Put(key, pages.KindError, failKey)
	default:
		h.notices.Put(key, pages.KindSuccess, okKey)
	}

	http.Redirect(w, r, pages.ListURL(criteriaFromRequest(r), "", ""), http.StatusSeeOther)
}

// findWorker ищет запись по id в загруженном наборе.
func findWorker(workers []model.Worker, id string) *model.Worker {
	if id == "" {
		return nil
	}
	for i := range workers {
		if workers[i].ID == id {
			w := workers[i]
			return &w
		}
	}
	return nil
}
