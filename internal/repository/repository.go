// Пакет repository — слой доступа к записям о сотрудниках.
//
// Две реализации WorkerRepository:
//   - rest — REST-шлюз BaaS (по умолчанию), запросы от имени пользователя
//   - postgres — прямой SQL через pgx и scany, без ORM
//
// Любой сбой возвращается как *apperr.RepositoryError с операцией и кодом.
// Репозиторий не выполняет авторизацию: это политика хранилища.
package repository

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
)

// WorkerRepository — интерфейс CRUD для записей о сотрудниках.
type WorkerRepository interface {
	// List возвращает записи от новых к старым, с фильтром по отделу.
	List(ctx context.Context, filter model.ListFilter) ([]model.Worker, error)
	// Insert создаёт запись; id и created_at назначает хранилище.
	Insert(ctx context.Context, form model.WorkerForm, creator string) (*model.Worker, error)
	// Update перезаписывает изменяемые поля записи.
	Update(ctx context.Context, id string, form model.WorkerForm) error
	// Delete безвозвратно удаляет запись.
	Delete(ctx context.Context, id string) error
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// classifyPg переводит ошибку pgx в RepositoryError.
func classifyPg(op apperr.Op, err error) *apperr.RepositoryError {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NewRepositoryError(op, apperr.RepoNotFound, "", err)
	}
	if isUniqueViolation(err) {
		return apperr.NewRepositoryError(op, apperr.RepoConflict, "", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22001", "22007", "22008", "22P02", "23502", "23514":
			// string_data_right_truncation, invalid_datetime_format, datetime_field_overflow,
			// invalid_text_representation, not_null_violation, check_violation
			return apperr.NewRepositoryError(op, apperr.RepoInvalidInput, "", err)
		case "42501":
			// insufficient_privilege
			return apperr.NewRepositoryError(op, apperr.RepoRejected, "", err)
		default:
			return apperr.NewRepositoryError(op, apperr.RepoUnknown, "", err)
		}
	}

	return classifyTransport(op, err)
}

// classifyTransport распознаёт сетевые сбои и отмену контекста.
func classifyTransport(op apperr.Op, err error) *apperr.RepositoryError {
	var netErr net.Error
	var connErr *pgconn.ConnectError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr), errors.As(err, &connErr):
		return apperr.NewRepositoryError(op, apperr.RepoUnavailable, "", err)
	default:
		return apperr.NewRepositoryError(op, apperr.RepoUnknown, "", err)
	}
}
