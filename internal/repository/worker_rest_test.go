package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/supabase"
)

// fakeTable — in-memory таблица, обслуживаемая по протоколу PostgREST.
type fakeTable struct {
	mu      sync.Mutex
	rows    []model.Worker
	nextID  int
	clock   time.Time
	calls   map[string]int
	failure int // если не 0 — все запросы завершаются этим статусом
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		clock: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		calls: make(map[string]int),
	}
}

func (f *fakeTable) setFailure(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failure = status
}

func (f *fakeTable) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[r.Method]++
	if r.Header.Get("Authorization") != "Bearer user-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.failure != 0 {
		w.WriteHeader(f.failure)
		_, _ = w.Write([]byte(`{"code":"XX000","message":"internal"}`))
		return
	}

	q := r.URL.Query()
	idFilter := strings.TrimPrefix(q.Get("id"), "eq.")

	switch r.Method {
	case http.MethodGet:
		dep := strings.TrimPrefix(q.Get("departement"), "eq.")
		out := make([]model.Worker, 0)
		for _, row := range f.rows {
			if dep == "" || row.Department == dep {
				out = append(out, row)
			}
		}
		if q.Get("order") == "created_at.desc" {
			sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		date, err := model.ParseDate(body["date_adhesion"])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "22007", "message": "invalid input syntax for type date"})
			return
		}
		f.nextID++
		f.clock = f.clock.Add(time.Minute)
		row := model.Worker{
			ID: fmt.Sprintf("w%d", f.nextID), FamilyName: body["nom"], PostName: body["postnom"],
			GivenName: body["prenom"], Phone: body["telephone"], Department: body["departement"],
			Education: body["niveau_etudes"], Gender: body["sexe"], JoinDate: date,
			CreatedBy: body["created_by"], CreatedAt: f.clock,
		}
		f.rows = append(f.rows, row)
		writeJSON(w, http.StatusCreated, []model.Worker{row})

	case http.MethodPatch:
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["created_by"]; ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "created_by не должен передаваться при обновлении"})
			return
		}
		out := make([]model.Worker, 0)
		for i := range f.rows {
			if f.rows[i].ID == idFilter {
				f.rows[i].FamilyName = body["nom"]
				f.rows[i].Department = body["departement"]
				out = append(out, f.rows[i])
			}
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodDelete:
		out := make([]model.Worker, 0)
		kept := f.rows[:0]
		for _, row := range f.rows {
			if row.ID == idFilter {
				out = append(out, row)
				continue
			}
			kept = append(kept, row)
		}
		f.rows = kept
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// setupRESTRepo создаёт репозиторий поверх fake PostgREST.
func setupRESTRepo(t *testing.T) (WorkerRepository, *fakeTable, context.Context) {
	t.Helper()

	table := newFakeTable()
	mux := http.NewServeMux()
	mux.Handle("/rest/v1/workers", table)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	client := supabase.New(server.URL, "anon-key", server.Client(), logger)

	ctx := supabase.WithAccessToken(context.Background(), "user-token")
	return NewWorkerRESTRepository(client, "workers"), table, ctx
}

func form(nom, dep string) model.WorkerForm {
	return model.WorkerForm{
		FamilyName: nom, PostName: "P", GivenName: "G", Phone: "+243 81 234 5678",
		Department: dep, Education: "G3", Gender: model.GenderMale, JoinDate: "2024-01-15",
	}
}

func names(workers []model.Worker) []string {
	out := make([]string, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.FamilyName)
	}
	return out
}

// TestRESTRepo_ListOrderAndFilter — сценарий: Mbuyi (Finance, t1), Kalonji (Informatique, t2>t1).
func TestRESTRepo_ListOrderAndFilter(t *testing.T) {
	repo, _, ctx := setupRESTRepo(t)

	if _, err := repo.Insert(ctx, form("Mbuyi", "Finance"), "u1"); err != nil {
		t.Fatalf("Insert Mbuyi: %v", err)
	}
	if _, err := repo.Insert(ctx, form("Kalonji", "Informatique"), "u1"); err != nil {
		t.Fatalf("Insert Kalonji: %v", err)
	}

	all, err := repo.List(ctx, model.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"Kalonji", "Mbuyi"}, names(all)); diff != "" {
		t.Errorf("List() (-want +got):\n%s", diff)
	}

	finance, err := repo.List(ctx, model.ListFilter{Department: "Finance"})
	if err != nil {
		t.Fatalf("List(Finance): %v", err)
	}
	if diff := cmp.Diff([]string{"Mbuyi"}, names(finance)); diff != "" {
		t.Errorf("List(Finance) (-want +got):\n%s", diff)
	}
}

func TestRESTRepo_InsertAssignsServerFields(t *testing.T) {
	repo, _, ctx := setupRESTRepo(t)

	w, err := repo.Insert(ctx, form("Mbuyi", "Finance"), "user-42")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if w.ID == "" || w.CreatedAt.IsZero() {
		t.Errorf("id и created_at должны назначаться хранилищем: %+v", w)
	}
	if w.CreatedBy != "user-42" {
		t.Errorf("CreatedBy = %q, ожидается user-42", w.CreatedBy)
	}
	if w.JoinDate.String() != "2024-01-15" {
		t.Errorf("JoinDate = %q", w.JoinDate.String())
	}
}

func TestRESTRepo_UpdateDelete(t *testing.T) {
	repo, _, ctx := setupRESTRepo(t)

	w, err := repo.Insert(ctx, form("Mbuyi", "Finance"), "u1")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := repo.Update(ctx, w.ID, form("Mbuyi-Kasongo", "Juridique")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	list, _ := repo.List(ctx, model.ListFilter{Department: "Juridique"})
	if len(list) != 1 || list[0].FamilyName != "Mbuyi-Kasongo" || list[0].CreatedBy != "u1" {
		t.Errorf("после Update: %+v", list)
	}

	if err := repo.Delete(ctx, w.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ = repo.List(ctx, model.ListFilter{})
	if len(list) != 0 {
		t.Errorf("после Delete осталось %d записей", len(list))
	}

	err = repo.Delete(ctx, w.ID)
	if !apperr.IsRepoCode(err, apperr.RepoNotFound) {
		t.Errorf("повторный Delete: ожидался not_found, получено %v", err)
	}
	err = repo.Update(ctx, "missing", form("X", "Finance"))
	if !apperr.IsRepoCode(err, apperr.RepoNotFound) {
		t.Errorf("Update отсутствующей записи: ожидался not_found, получено %v", err)
	}
}

func TestRESTRepo_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		ctx    func(context.Context) context.Context
		want   apperr.RepoCode
	}{
		{"5xx", http.StatusServiceUnavailable, nil, apperr.RepoUnavailable},
		{"без токена", 0, func(context.Context) context.Context { return context.Background() }, apperr.RepoRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, table, ctx := setupRESTRepo(t)
			table.setFailure(tt.status)
			if tt.ctx != nil {
				ctx = tt.ctx(ctx)
			}

			_, err := repo.List(ctx, model.ListFilter{})
			re, ok := apperr.AsRepository(err)
			if !ok {
				t.Fatalf("ожидалась RepositoryError, получено %T: %v", err, err)
			}
			if re.Op != apperr.OpList || re.Code != tt.want {
				t.Errorf("RepositoryError = {%s %s}, ожидается {list %s}", re.Op, re.Code, tt.want)
			}
		})
	}
}

func TestRESTRepo_InvalidDate(t *testing.T) {
	repo, _, ctx := setupRESTRepo(t)

	f := form("Mbuyi", "Finance")
	f.JoinDate = "15/01/2024"
	_, err := repo.Insert(ctx, f, "u1")
	re, ok := apperr.AsRepository(err)
	if !ok || re.Code != apperr.RepoInvalidInput || re.Op != apperr.OpInsert {
		t.Fatalf("ожидалась invalid_input для insert, получено %v", err)
	}
	if re.Message != "invalid input syntax for type date" {
		t.Errorf("сообщение хранилища должно сохраняться, получено %q", re.Message)
	}
}

func TestClassifyREST(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.RepoCode
	}{
		{"сеть", &supabase.APIError{Message: "dial tcp"}, apperr.RepoUnavailable},
		{"уникальность", &supabase.APIError{Status: 409, Code: "23505"}, apperr.RepoConflict},
		{"RLS", &supabase.APIError{Status: 403, Code: "42501"}, apperr.RepoRejected},
		{"нет строк", &supabase.APIError{Status: 406, Code: "PGRST116"}, apperr.RepoNotFound},
		{"некорректный uuid", &supabase.APIError{Status: 400, Code: "22P02"}, apperr.RepoInvalidInput},
		{"5xx", &supabase.APIError{Status: 502}, apperr.RepoUnavailable},
		{"прочее", &supabase.APIError{Status: 418}, apperr.RepoUnknown},
		{"декодирование", errors.New("декодирование ответа BaaS: unexpected EOF"), apperr.RepoDecodeFailed},
		{"таймаут", fmt.Errorf("x: %w", context.DeadlineExceeded), apperr.RepoUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyREST(apperr.OpUpdate, tt.err)
			if got.Code != tt.want {
				t.Errorf("classifyREST() = %s, ожидается %s", got.Code, tt.want)
			}
			if got.Op != apperr.OpUpdate {
				t.Errorf("Op = %s, ожидается update", got.Op)
			}
		})
	}
}

func TestWithMetrics(t *testing.T) {
	repo, table, ctx := setupRESTRepo(t)
	instrumented := WithMetrics(repo, "test-rest")

	if _, err := instrumented.List(ctx, model.ListFilter{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	table.setFailure(http.StatusInternalServerError)
	_, _ = instrumented.List(ctx, model.ListFilter{})

	if got := testutil.ToFloat64(repoOperationsTotal.WithLabelValues("test-rest", "list", "ok")); got != 1 {
		t.Errorf("ok-операций = %v, ожидается 1", got)
	}
	if got := testutil.ToFloat64(repoOperationsTotal.WithLabelValues("test-rest", "list", "unavailable")); got != 1 {
		t.Errorf("unavailable-операций = %v, ожидается 1", got)
	}
	if n := table.callCount(http.MethodGet); n != 2 {
		t.Errorf("обёртка должна передавать вызовы: GET = %d", n)
	}
}
