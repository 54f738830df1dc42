package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
)

// workerColumns — колонки таблицы workers в порядке выборки.
const workerColumns = `id, nom, postnom, prenom, telephone, departement,
	niveau_etudes, sexe, date_adhesion, created_by, created_at`

// workerPostgresRepo — реализация WorkerRepository поверх PostgreSQL.
type workerPostgresRepo struct {
	db DBTX
}

// NewWorkerPostgresRepository создаёт репозиторий сотрудников для PostgreSQL.
func NewWorkerPostgresRepository(db DBTX) WorkerRepository {
	return &workerPostgresRepo{db: db}
}

func (r *workerPostgresRepo) List(ctx context.Context, filter model.ListFilter) ([]model.Worker, error) {
	// Динамическое построение WHERE
	var conditions []string
	var args []any
	argNum := 1

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("departement = $%d", argNum))
		args = append(args, filter.Department)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM workers
		%s
		ORDER BY created_at DESC, id`, workerColumns, where)

	workers := make([]model.Worker, 0)
	if err := pgxscan.Select(ctx, r.db, &workers, query, args...); err != nil {
		return nil, classifyPg(apperr.OpList, fmt.Errorf("ошибка получения списка сотрудников: %w", err))
	}
	return workers, nil
}

func (r *workerPostgresRepo) Insert(ctx context.Context, form model.WorkerForm, creator string) (*model.Worker, error) {
	query := fmt.Sprintf(`
		INSERT INTO workers (id, nom, postnom, prenom, telephone, departement,
			niveau_etudes, sexe, date_adhesion, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date, $10)
		RETURNING %s`, workerColumns)

	var w model.Worker
	err := pgxscan.Get(ctx, r.db, &w, query,
		uuid.NewString(), form.FamilyName, form.PostName, form.GivenName, form.Phone,
		form.Department, form.Education, form.Gender, form.JoinDate, creator,
	)
	if err != nil {
		return nil, classifyPg(apperr.OpInsert, fmt.Errorf("ошибка создания сотрудника: %w", err))
	}
	return &w, nil
}

func (r *workerPostgresRepo) Update(ctx context.Context, id string, form model.WorkerForm) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NewRepositoryError(apperr.OpUpdate, apperr.RepoNotFound, "", err)
	}

	query := `
		UPDATE workers
		SET nom = $2, postnom = $3, prenom = $4, telephone = $5, departement = $6,
			niveau_etudes = $7, sexe = $8, date_adhesion = $9::date
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		id, form.FamilyName, form.PostName, form.GivenName, form.Phone,
		form.Department, form.Education, form.Gender, form.JoinDate,
	)
	if err != nil {
		return classifyPg(apperr.OpUpdate, fmt.Errorf("ошибка обновления сотрудника: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewRepositoryError(apperr.OpUpdate, apperr.RepoNotFound, "", nil)
	}
	return nil
}

func (r *workerPostgresRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NewRepositoryError(apperr.OpDelete, apperr.RepoNotFound, "", err)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM workers WHERE id = $1`, id)
	if err != nil {
		return classifyPg(apperr.OpDelete, fmt.Errorf("ошибка удаления сотрудника: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewRepositoryError(apperr.OpDelete, apperr.RepoNotFound, "", nil)
	}
	return nil
}
