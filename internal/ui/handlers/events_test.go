package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/workerreg/internal/domain/guard"
	uimiddleware "github.com/bigkaa/workerreg/internal/ui/middleware"
)

// openStream подключается к /events/session клиентом c.
func openStream(t *testing.T, h *harness, c *http.Client) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.srv.URL+"/events/session", nil)
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	resp, err := c.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("подключение к SSE: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	return bufio.NewReader(resp.Body), func() {
		cancel()
		resp.Body.Close()
	}
}

// nextGuard читает следующее событие guard, пропуская keep-alive.
func nextGuard(t *testing.T, r *bufio.Reader) guardEvent {
	t.Helper()
	var name string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("чтение SSE: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && name == "guard":
			var ev guardEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("разбор события: %v", err)
			}
			return ev
		}
	}
}

func TestEvents_RedirectWithoutSession(t *testing.T) {
	h := newHarness(t)
	stream, closeStream := openStream(t, h, h.client(t))
	defer closeStream()

	ev := nextGuard(t, stream)
	if ev.State != guard.StateUnauthenticated || ev.Action != guard.ActionRedirect || ev.Redirect != "/auth" {
		t.Fatalf("первое событие: %+v", ev)
	}

	// После redirect поток закрывается сервером
	if _, err := io.ReadAll(stream); err != nil {
		t.Errorf("ожидалось штатное закрытие потока: %v", err)
	}
}

func TestEvents_SignOutPushesRedirect(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.login(t, c)

	stream, closeStream := openStream(t, h, c)
	defer closeStream()

	ev := nextGuard(t, stream)
	if ev.State != guard.StateAuthenticated || ev.Action != guard.ActionRender || !ev.LoggedIn {
		t.Fatalf("первое событие: %+v", ev)
	}
	if ev.Reason != "INITIAL_SESSION" {
		t.Errorf("reason = %q", ev.Reason)
	}

	// Выход в другой вкладке того же браузера
	h.post(t, c, "/logout", nil)

	ev2 := nextGuard(t, stream)
	if ev2.Action != guard.ActionRedirect || ev2.Redirect != "/auth" || ev2.LoggedIn {
		t.Fatalf("событие после выхода: %+v", ev2)
	}
	if ev2.Reason != "SIGNED_OUT" {
		t.Errorf("reason = %q, ожидался SIGNED_OUT", ev2.Reason)
	}
	if ev2.Seq <= ev.Seq {
		t.Errorf("номер события не вырос: %d → %d", ev.Seq, ev2.Seq)
	}
}

func TestEvents_SignOutBeforeSubscribe(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	h.login(t, c)

	// Выход применяется после разрешения сессии запроса, но до подписки потока
	h.setBeforeEvents(func(r *http.Request) {
		snap := uimiddleware.SnapshotFromContext(r.Context())
		key := uimiddleware.DeviceFromContext(r.Context())
		if err := h.store.SignOut(r.Context(), key, snap.Session); err != nil {
			t.Errorf("выход: %v", err)
		}
	})

	stream, closeStream := openStream(t, h, c)
	defer closeStream()

	ev := nextGuard(t, stream)
	if ev.State != guard.StateUnauthenticated || ev.Action != guard.ActionRedirect || ev.LoggedIn {
		t.Fatalf("поток должен учитывать выход до подписки: %+v", ev)
	}
	if ev.Redirect != "/auth" {
		t.Errorf("redirect = %q", ev.Redirect)
	}
	if _, err := io.ReadAll(stream); err != nil {
		t.Errorf("ожидалось штатное закрытие потока: %v", err)
	}
}
