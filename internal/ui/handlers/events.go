// events.go — SSE-поток сессии (GET /events/session).
// Каждое подключение владеет одной подпиской хранилища сессий и одним
// стражем. Решения стража отправляются событием guard; при переходе в
// unauthenticated отправляется redirect и поток закрывается.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/workerreg/internal/domain/guard"
	"github.com/bigkaa/workerreg/internal/session"
	uimiddleware "github.com/bigkaa/workerreg/internal/ui/middleware"
)

// EventsHandler — обработчик SSE-потока сессии.
type EventsHandler struct {
	store     *session.Store
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewEventsHandler создаёт новый EventsHandler.
// keepAlive — интервал комментариев keep-alive (WR_SSE_KEEPALIVE).
func NewEventsHandler(store *session.Store, keepAlive time.Duration, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		store:     store,
		keepAlive: keepAlive,
		logger:    logger.With(slog.String("component", "ui.events")),
	}
}

// guardEvent — SSE-событие решения стража.
type guardEvent struct {
	State    guard.State  `json:"state"`
	Action   guard.Action `json:"action"`
	Redirect string       `json:"redirect,omitempty"`
	LoggedIn bool         `json:"logged_in"`
	Seq      uint64       `json:"seq"`
	Reason   string       `json:"reason"`
}

// HandleSession обрабатывает GET /events/session.
// Формат: event: guard\ndata: {json}\n\n
func (h *EventsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := uimiddleware.DeviceFromContext(ctx)
	g := uimiddleware.GuardFromContext(ctx)
	if key == "" || g == nil {
		http.Error(w, "Сессия не разрешена", http.StatusInternalServerError)
		return
	}

	// Подписка до отправки первого события: события между ними не теряются
	sub := h.store.Subscribe(key)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// ResponseController находит http.Flusher через Unwrap() обёрток middleware
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "SSE не поддерживается", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("SSE клиент подключён",
		slog.String("remote_addr", r.RemoteAddr),
	)

	// Событие между разрешением сессии и подпиской уже не придёт в канал:
	// сверяем страж с последним применённым снимком ключа
	reason := string(session.EventInitialSession)
	if latest := h.store.Snapshot(key); !latest.Loading && latest.Seq > g.LastSeq() {
		g.Apply(latest.LoggedIn(), latest.Seq, reason)
	}
	state := g.State()
	if !h.send(w, rc, state, state == guard.StateAuthenticated, g.LastSeq(), reason) {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE клиент отключён")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				// Хранилище закрыто: сервер останавливается
				return
			}
			state, applied := g.Apply(ev.Snapshot.LoggedIn(), ev.Snapshot.Seq, string(ev.Kind))
			if !applied {
				continue
			}
			if !h.send(w, rc, state, ev.Snapshot.LoggedIn(), ev.Snapshot.Seq, string(ev.Kind)) {
				return
			}
		}
	}
}

// send отправляет решение стража. Возвращает false, если поток нужно закрыть:
// после redirect или при ошибке записи.
func (h *EventsHandler) send(w http.ResponseWriter, rc *http.ResponseController, state guard.State, loggedIn bool, seq uint64, reason string) bool {
	event := guardEvent{
		State:    state,
		Action:   state.Action(),
		LoggedIn: loggedIn,
		Seq:      seq,
		Reason:   reason,
	}
	if event.Action == guard.ActionRedirect {
		event.Redirect = guard.RedirectPath
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Ошибка сериализации guard", slog.String("error", err.Error()))
		return false
	}

	if _, err := fmt.Fprintf(w, "event: guard\ndata: %s\n\n", data); err != nil {
		return false
	}
	_ = rc.Flush()

	return event.Action != guard.ActionRedirect
}
