package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/bigkaa/workerreg/internal/api/middleware"
	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo — WorkerRepository в памяти.
type fakeRepo struct {
	mu      sync.Mutex
	workers []model.Worker
	calls   int
	nextID  int
	listErr error
}

func (f *fakeRepo) List(_ context.Context, lf model.ListFilter) ([]model.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Worker{}
	// Новые записи в конце среза: обходим с конца
	for i := len(f.workers) - 1; i >= 0; i-- {
		if lf.Department == "" || f.workers[i].Department == lf.Department {
			out = append(out, f.workers[i])
		}
	}
	return out, nil
}

func (f *fakeRepo) Insert(_ context.Context, form model.WorkerForm, creator string) (*model.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.nextID++
	w := model.Worker{
		ID: fmt.Sprintf("w-%d", f.nextID), FamilyName: form.FamilyName, PostName: form.PostName,
		GivenName: form.GivenName, Phone: form.Phone, Department: form.Department,
		Education: form.Education, Gender: form.Gender, CreatedBy: creator,
		CreatedAt: time.Date(2024, 1, 15, 9, f.nextID, 0, 0, time.UTC),
	}
	f.workers = append(f.workers, w)
	return &w, nil
}

func (f *fakeRepo) Update(_ context.Context, id string, form model.WorkerForm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i := range f.workers {
		if f.workers[i].ID == id {
			f.workers[i].FamilyName = form.FamilyName
			return nil
		}
	}
	return apperr.NewRepositoryError(apperr.OpUpdate, apperr.RepoNotFound, "", nil)
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i := range f.workers {
		if f.workers[i].ID == id {
			f.workers = append(f.workers[:i], f.workers[i+1:]...)
			return nil
		}
	}
	return apperr.NewRepositoryError(apperr.OpDelete, apperr.RepoNotFound, "", nil)
}

// withClaims имитирует JWT middleware: кладёт claims в контекст.
func withClaims(claims *middleware.AuthClaims) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims != nil {
				r = r.WithContext(context.WithValue(r.Context(), middleware.ContextKeyClaims, claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// setupAPI собирает роутер /api/v1/workers поверх fakeRepo.
func setupAPI(t *testing.T, repo *fakeRepo, claims *middleware.AuthClaims) http.Handler {
	t.Helper()
	svc := service.NewWorkerService(repo, service.NewFormValidator(), testLogger())
	h := NewAPIHandler(NewHealthHandler(), svc, testLogger())

	r := chi.NewRouter()
	r.Use(withClaims(claims))
	r.Get("/api/v1/workers", h.ListWorkers)
	r.Post("/api/v1/workers", h.CreateWorker)
	r.Put("/api/v1/workers/{id}", h.UpdateWorker)
	r.Delete("/api/v1/workers/{id}", h.DeleteWorker)
	return r
}

func userClaims() *middleware.AuthClaims {
	return &middleware.AuthClaims{
		Subject: "u-1", Email: "amani@example.com", Role: middleware.RoleAuthenticated,
		Token: "at-1", ExpiresAt: time.Now().Add(time.Hour),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func workerBody(nom, dep, phone string) map[string]string {
	return map[string]string{
		"nom": nom, "postnom": "Kabongo", "prenom": "Jean", "telephone": phone,
		"departement": dep, "niveau_etudes": "G3", "sexe": "Masculin", "date_adhesion": "2024-01-15",
	}
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) workerListResponse {
	t.Helper()
	var resp workerListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	return resp
}

func names(items []model.Worker) []string {
	out := make([]string, 0, len(items))
	for _, w := range items {
		out = append(out, w.FamilyName)
	}
	return out
}

func TestWorkersAPI_CreateListFilter(t *testing.T) {
	repo := &fakeRepo{}
	h := setupAPI(t, repo, userClaims())

	rec := doJSON(t, h, http.MethodPost, "/api/v1/workers", workerBody("Mbuyi", "Finance", "+243 99 000 0000"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST: статус %d, тело %s", rec.Code, rec.Body.String())
	}
	var created model.Worker
	_ = json.NewDecoder(rec.Body).Decode(&created)
	if created.CreatedBy != "u-1" {
		t.Errorf("created_by = %q, ожидался u-1", created.CreatedBy)
	}

	doJSON(t, h, http.MethodPost, "/api/v1/workers", workerBody("Kalonji", "Informatique", "+243 81 234 5678"))

	resp := decodeList(t, doJSON(t, h, http.MethodGet, "/api/v1/workers", nil))
	if diff := cmp.Diff([]string{"Kalonji", "Mbuyi"}, names(resp.Items)); diff != "" {
		t.Errorf("список (-ожидалось +получено):\n%s", diff)
	}

	resp = decodeList(t, doJSON(t, h, http.MethodGet, "/api/v1/workers?departement=Finance", nil))
	if diff := cmp.Diff([]string{"Mbuyi"}, names(resp.Items)); diff != "" {
		t.Errorf("фильтр по отделу (-ожидалось +получено):\n%s", diff)
	}

	resp = decodeList(t, doJSON(t, h, http.MethodGet, "/api/v1/workers?q=243%2081", nil))
	if resp.Total != 2 || resp.Filtered != 1 || resp.Items[0].FamilyName != "Kalonji" {
		t.Errorf("поиск по телефону: %+v", resp)
	}

	resp = decodeList(t, doJSON(t, h, http.MethodGet, "/api/v1/workers?q=xyz", nil))
	if resp.Filtered != 0 || len(resp.Items) != 0 {
		t.Errorf("поиск xyz должен быть пустым: %+v", resp)
	}
}

func TestWorkersAPI_Errors(t *testing.T) {
	repo := &fakeRepo{}
	h := setupAPI(t, repo, userClaims())

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
		code   string
	}{
		{"неизвестный отдел в фильтре", http.MethodGet, "/api/v1/workers?departement=Cuisine", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"невалидная форма", http.MethodPost, "/api/v1/workers", workerBody("", "Finance", "1"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"лишнее поле", http.MethodPost, "/api/v1/workers", map[string]string{"created_by": "x"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"обновление отсутствующей", http.MethodPut, "/api/v1/workers/nope", workerBody("A", "Finance", "1"), http.StatusNotFound, "NOT_FOUND"},
		{"удаление отсутствующей", http.MethodDelete, "/api/v1/workers/nope", nil, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("статус %d, ожидался %d, тело %s", rec.Code, tt.want, rec.Body.String())
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			_ = json.NewDecoder(rec.Body).Decode(&body)
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, ожидался %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestWorkersAPI_StoreUnavailable(t *testing.T) {
	repo := &fakeRepo{listErr: apperr.NewRepositoryError(apperr.OpList, apperr.RepoUnavailable, "", nil)}
	h := setupAPI(t, repo, userClaims())

	rec := doJSON(t, h, http.MethodGet, "/api/v1/workers", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("статус %d, ожидался 502", rec.Code)
	}
}

func TestWorkersAPI_UpdateDelete(t *testing.T) {
	repo := &fakeRepo{}
	h := setupAPI(t, repo, userClaims())

	doJSON(t, h, http.MethodPost, "/api/v1/workers", workerBody("Mbuyi", "Finance", "1"))

	if rec := doJSON(t, h, http.MethodPut, "/api/v1/workers/w-1", workerBody("Mbuyi-Kasa", "Finance", "1")); rec.Code != http.StatusNoContent {
		t.Fatalf("PUT: статус %d, тело %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodDelete, "/api/v1/workers/w-1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE: статус %d", rec.Code)
	}

	resp := decodeList(t, doJSON(t, h, http.MethodGet, "/api/v1/workers", nil))
	if resp.Total != 0 {
		t.Errorf("после удаления total = %d", resp.Total)
	}
}

func TestWorkersAPI_NoSessionMakesNoCalls(t *testing.T) {
	repo := &fakeRepo{}
	h := setupAPI(t, repo, nil)

	for _, tt := range []struct{ method, path string }{
		{http.MethodPut, "/api/v1/workers/w-1"},
		{http.MethodDelete, "/api/v1/workers/w-1"},
		{http.MethodPost, "/api/v1/workers"},
	} {
		rec := doJSON(t, h, tt.method, tt.path, workerBody("A", "Finance", "1"))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: статус %d, ожидался 401", tt.method, tt.path, rec.Code)
		}
	}
	if repo.calls != 0 {
		t.Errorf("без сессии выполнено %d вызовов хранилища", repo.calls)
	}
}
