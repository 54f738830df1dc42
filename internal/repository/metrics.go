// metrics.go — Prometheus метрики операций хранилища записей.
// Регистрирует: wr_repository_operations_total, wr_repository_operation_duration_seconds.
package repository

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
)

var (
	repoOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wr_repository_operations_total",
			Help: "Количество операций над хранилищем записей о сотрудниках",
		},
		[]string{"backend", "op", "result"},
	)

	repoOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wr_repository_operation_duration_seconds",
			Help:    "Длительность операций над хранилищем записей в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)

// instrumentedRepo — WorkerRepository с учётом операций в метриках.
type instrumentedRepo struct {
	next    WorkerRepository
	backend string
}

// WithMetrics оборачивает репозиторий сбором метрик.
// backend — метка хранилища (rest, postgres).
func WithMetrics(next WorkerRepository, backend string) WorkerRepository {
	return &instrumentedRepo{next: next, backend: backend}
}

// observe записывает длительность и результат операции.
// result — "ok" или код RepositoryError.
func (r *instrumentedRepo) observe(op apperr.Op, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.RepoUnknown)
		if re, ok := apperr.AsRepository(err); ok {
			result = string(re.Code)
		}
	}
	repoOperationsTotal.WithLabelValues(r.backend, string(op), result).Inc()
	repoOperationDuration.WithLabelValues(r.backend, string(op)).Observe(time.Since(start).Seconds())
}

func (r *instrumentedRepo) List(ctx context.Context, filter model.ListFilter) ([]model.Worker, error) {
	start := time.Now()
	workers, err := r.next.List(ctx, filter)
	r.observe(apperr.OpList, start, err)
	return workers, err
}

func (r *instrumentedRepo) Insert(ctx context.Context, form model.WorkerForm, creator string) (*model.Worker, error) {
	start := time.Now()
	w, err := r.next.Insert(ctx, form, creator)
	r.observe(apperr.OpInsert, start, err)
	return w, err
}

func (r *instrumentedRepo) Update(ctx context.Context, id string, form model.WorkerForm) error {
	start := time.Now()
	err := r.next.Update(ctx, id, form)
	r.observe(apperr.OpUpdate, start, err)
	return err
}

func (r *instrumentedRepo) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := r.next.Delete(ctx, id)
	r.observe(apperr.OpDelete, start, err)
	return err
}
