package session

import "sync"

// Subscription — подписка на события одного ключа.
// Канал Events закрывается при Close подписки или хранилища.
type Subscription struct {
	key    Key
	id     uint64
	events chan Event
	store  *Store
	once   sync.Once
}

// Events возвращает канал событий подписки.
func (sub *Subscription) Events() <-chan Event {
	return sub.events
}

// Close отменяет подписку. Повторный вызов безопасен.
func (sub *Subscription) Close() {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()

	if subs, ok := sub.store.subs[sub.key]; ok {
		if _, ok := subs[sub.id]; ok {
			delete(subs, sub.id)
			activeSubscriptions.Dec()
		}
		if len(subs) == 0 {
			delete(sub.store.subs, sub.key)
		}
	}
	sub.release()
}

// release закрывает канал. Вызывается под s.mu.
func (sub *Subscription) release() {
	sub.once.Do(func() {
		close(sub.events)
	})
}

// Subscribe регистрирует подписчика на события ключа.
// После Close хранилища возвращается уже закрытая подписка.
func (s *Store) Subscribe(key Key) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	sub := &Subscription{
		key:    key,
		id:     s.nextSubID,
		events: make(chan Event, s.opts.Buffer),
		store:  s,
	}
	if s.closed {
		sub.release()
		return sub
	}

	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]*Subscription)
	}
	s.subs[key][sub.id] = sub
	activeSubscriptions.Inc()
	return sub
}

// publishLocked доставляет событие подписчикам ключа без блокировки.
// При переполненном буфере вытесняется самое старое событие. Вызывается под s.mu.
func (s *Store) publishLocked(ev Event) {
	eventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	for _, sub := range s.subs[ev.Key] {
		select {
		case sub.events <- ev:
			continue
		default:
		}
		// Буфер полон: отбрасываем самое старое событие
		select {
		case <-sub.events:
			droppedEventsTotal.Inc()
		default:
		}
		select {
		case sub.events <- ev:
		default:
			droppedEventsTotal.Inc()
		}
	}
}
