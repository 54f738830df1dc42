// Пакет guard — конечный автомат доступа к защищённым страницам.
//
// Состояния:
//   - checking — сессия ещё не разрешена (начальное)
//   - authenticated — сессия присутствует
//   - unauthenticated — сессия отсутствует или разрешение завершилось ошибкой
//
// Переходы выполняются применением событий сессии с порядковыми номерами.
// Событие с номером меньше последнего применённого игнорируется, поэтому
// состояние всегда соответствует самому свежему событию. В checking
// автомат больше не возвращается.
//
// Потокобезопасен через sync.RWMutex.
package guard

import (
	"sync"
	"time"
)

// State — состояние автомата.
type State string

const (
	// StateChecking — сессия разрешается, показывается индикатор «Vérification...»
	StateChecking State = "checking"
	// StateAuthenticated — показывается защищённое содержимое
	StateAuthenticated State = "authenticated"
	// StateUnauthenticated — активный редирект на /auth
	StateUnauthenticated State = "unauthenticated"
)

// Action — действие представления для состояния.
type Action string

const (
	// ActionWait — показать индикатор загрузки, без навигации
	ActionWait Action = "wait"
	// ActionRender — отрисовать защищённое содержимое
	ActionRender Action = "render"
	// ActionRedirect — перейти на страницу аутентификации
	ActionRedirect Action = "redirect"
)

// RedirectPath — единственная точка входа аутентификации.
const RedirectPath = "/auth"

// Action возвращает действие представления для состояния.
func (s State) Action() Action {
	switch s {
	case StateAuthenticated:
		return ActionRender
	case StateUnauthenticated:
		return ActionRedirect
	default:
		return ActionWait
	}
}

// validTransitions — матрица допустимых переходов.
// Переход в то же состояние допустим (повторное событие), в checking — нет.
var validTransitions = map[State]map[State]bool{
	StateChecking:        {StateAuthenticated: true, StateUnauthenticated: true},
	StateAuthenticated:   {StateAuthenticated: true, StateUnauthenticated: true},
	StateUnauthenticated: {StateAuthenticated: true, StateUnauthenticated: true},
}

// TransitionRecord — запись о применённом событии.
type TransitionRecord struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Seq       uint64    `json:"seq"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Guard — автомат доступа одного представления (страницы или SSE-потока).
type Guard struct {
	mu      sync.RWMutex
	current State
	lastSeq uint64
	applied bool
	history []TransitionRecord
}

// New создаёт автомат в состоянии checking.
func New() *Guard {
	return &Guard{
		current: StateChecking,
		history: make([]TransitionRecord, 0),
	}
}

// State возвращает текущее состояние.
func (g *Guard) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// LastSeq возвращает номер последнего применённого события.
func (g *Guard) LastSeq() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastSeq
}

// Apply применяет результат разрешения или событие сессии.
//
// Параметры:
//   - present: сессия присутствует
//   - seq: порядковый номер события
//   - reason: тип события (INITIAL_SESSION, SIGNED_IN, SIGNED_OUT, ...)
//
// Возвращает новое состояние и признак того, что событие применено.
// Устаревшее событие (seq меньше последнего применённого) не меняет состояние.
func (g *Guard) Apply(present bool, seq uint64, reason string) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.applied && seq < g.lastSeq {
		return g.current, false
	}

	target := StateUnauthenticated
	if present {
		target = StateAuthenticated
	}
	if !validTransitions[g.current][target] {
		return g.current, false
	}

	g.history = append(g.history, TransitionRecord{
		From:      g.current,
		To:        target,
		Seq:       seq,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	g.current = target
	g.lastSeq = seq
	g.applied = true

	return target, true
}

// History возвращает историю применённых событий (копия).
func (g *Guard) History() []TransitionRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]TransitionRecord, len(g.history))
	copy(result, g.history)
	return result
}
