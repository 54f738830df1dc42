package handlers

import (
	"net/http"
	"testing"
)

func TestAddWorker_SuccessClearsForm(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.login(t, c)

	resp, body := h.post(t, c, "/add-worker", workerValues("Mbuyi", "Finance"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("статус %d", resp.StatusCode)
	}
	assertContains(t, body, "Travailleur ajouté avec succès!")
	assertNotContains(t, body, `value="Mbuyi"`, `243 81 234 5678"`)

	if len(h.repo.workers) != 1 {
		t.Fatalf("в хранилище %d записей, ожидалась 1", len(h.repo.workers))
	}
	if got := h.repo.workers[0].CreatedBy; got != "user-amani@example.com" {
		t.Errorf("created_by = %q", got)
	}
}

func TestAddWorker_FailureKeepsValues(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.login(t, c)

	values := workerValues("Mbuyi", "")
	resp, body := h.post(t, c, "/add-worker", values)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("статус %d", resp.StatusCode)
	}
	assertContains(t, body, "Erreur lors de l&#39;ajout", `value="Mbuyi"`, `243 81 234 5678"`)
	assertNotContains(t, body, "Travailleur ajouté avec succès!")

	if h.repo.callCount() != 0 {
		t.Errorf("невалидная форма не должна доходить до хранилища")
	}
}

func TestAddWorker_FormDefaults(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.login(t, c)

	_, body := h.get(t, c, "/add-worker")
	assertContains(t, body, `<option value="Masculin" selected>`, `243 XX XXX XXXX"`)
}
