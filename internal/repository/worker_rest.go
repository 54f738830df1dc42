package repository

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/supabase"
)

// TableGateway — операции REST-шлюза таблиц, нужные репозиторию.
// Реализуется *supabase.Client.
type TableGateway interface {
	Select(ctx context.Context, table string, query url.Values, target any) error
	Insert(ctx context.Context, table string, row, target any) error
	Update(ctx context.Context, table string, query url.Values, patch any) (int, error)
	Delete(ctx context.Context, table string, query url.Values) (int, error)
}

// workerRESTRepo — реализация WorkerRepository поверх REST-шлюза BaaS.
// Access token пользователя передаётся через supabase.WithAccessToken.
type workerRESTRepo struct {
	gw    TableGateway
	table string
}

// NewWorkerRESTRepository создаёт репозиторий сотрудников для REST-шлюза.
func NewWorkerRESTRepository(gw TableGateway, table string) WorkerRepository {
	return &workerRESTRepo{gw: gw, table: table}
}

// insertRow — тело вставки: изменяемые поля и создатель.
type insertRow struct {
	model.WorkerForm
	CreatedBy string `json:"created_by"`
}

func (r *workerRESTRepo) List(ctx context.Context, filter model.ListFilter) ([]model.Worker, error) {
	query := url.Values{
		"select": {"*"},
		"order":  {"created_at.desc"},
	}
	if filter.Department != "" {
		query.Set("departement", supabase.Eq(filter.Department))
	}

	workers := make([]model.Worker, 0)
	if err := r.gw.Select(ctx, r.table, query, &workers); err != nil {
		return nil, classifyREST(apperr.OpList, err)
	}
	return workers, nil
}

func (r *workerRESTRepo) Insert(ctx context.Context, form model.WorkerForm, creator string) (*model.Worker, error) {
	var created []model.Worker
	if err := r.gw.Insert(ctx, r.table, insertRow{WorkerForm: form, CreatedBy: creator}, &created); err != nil {
		return nil, classifyREST(apperr.OpInsert, err)
	}
	if len(created) == 0 {
		// Политика строк скрыла созданную запись
		return nil, apperr.NewRepositoryError(apperr.OpInsert, apperr.RepoRejected, "", nil)
	}
	return &created[0], nil
}

func (r *workerRESTRepo) Update(ctx context.Context, id string, form model.WorkerForm) error {
	n, err := r.gw.Update(ctx, r.table, url.Values{"id": {supabase.Eq(id)}}, form)
	if err != nil {
		return classifyREST(apperr.OpUpdate, err)
	}
	if n == 0 {
		return apperr.NewRepositoryError(apperr.OpUpdate, apperr.RepoNotFound, "", nil)
	}
	return nil
}

func (r *workerRESTRepo) Delete(ctx context.Context, id string) error {
	n, err := r.gw.Delete(ctx, r.table, url.Values{"id": {supabase.Eq(id)}})
	if err != nil {
		return classifyREST(apperr.OpDelete, err)
	}
	if n == 0 {
		return apperr.NewRepositoryError(apperr.OpDelete, apperr.RepoNotFound, "", nil)
	}
	return nil
}

// classifyREST переводит ошибку REST-шлюза в RepositoryError.
// Сообщение хранилища сохраняется: его показывают в «Erreur lors de l'ajout: <message>».
func classifyREST(op apperr.Op, err error) *apperr.RepositoryError {
	apiErr, ok := supabase.AsAPIError(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return apperr.NewRepositoryError(op, apperr.RepoUnavailable, "", err)
		}
		// Ответ получен, но не разобран
		return apperr.NewRepositoryError(op, apperr.RepoDecodeFailed, "", err)
	}

	var code apperr.RepoCode
	switch {
	case apiErr.Status == 0:
		code = apperr.RepoUnavailable
	case apiErr.Code == "23505" || apiErr.Status == http.StatusConflict:
		code = apperr.RepoConflict
	case apiErr.Code == "42501" || apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
		code = apperr.RepoRejected
	case apiErr.Status == http.StatusNotFound || apiErr.Code == "PGRST116":
		code = apperr.RepoNotFound
	case apiErr.Code == "22P02" || apiErr.Code == "23514" || apiErr.Code == "23502" ||
		apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity:
		code = apperr.RepoInvalidInput
	case apiErr.Status >= 500:
		code = apperr.RepoUnavailable
	default:
		code = apperr.RepoUnknown
	}

	message := apiErr.Message
	if apiErr.Status == 0 || apiErr.Status >= 500 {
		message = ""
	}
	return apperr.NewRepositoryError(op, code, message, err)
}
