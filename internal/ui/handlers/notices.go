// notices.go — уведомления страницы списка.
// Уведомление кладётся после действия (POST) и забирается следующей
// отрисовкой списка того же браузера. Через ttl оно исчезает и из кэша,
// и со страницы.
package handlers

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/workerreg/internal/session"
	"github.com/bigkaa/workerreg/internal/ui/i18n"
	"github.com/bigkaa/workerreg/internal/ui/pages"
)

// notice — отложенное уведомление: вид и ключ перевода.
type notice struct {
	kind      string
	key       string
	createdAt time.Time
}

// NoticeBoard — уведомления по ключам браузеров.
type NoticeBoard struct {
	ttl   time.Duration
	items *expirable.LRU[session.Key, notice]
	now   func() time.Time
}

// NewNoticeBoard создаёт хранилище уведомлений.
func NewNoticeBoard(ttl time.Duration, size int) *NoticeBoard {
	return &NoticeBoard{
		ttl:   ttl,
		items: expirable.NewLRU[session.Key, notice](size, nil, ttl),
		now:   time.Now,
	}
}

// Put сохраняет уведомление, заменяя предыдущее.
func (b *NoticeBoard) Put(key session.Key, kind, msgKey string) {
	b.items.Add(key, notice{kind: kind, key: msgKey, createdAt: b.now()})
}

// Take забирает уведомление и переводит его на язык запроса.
// Возвращает nil, если уведомления нет или оно истекло.
func (b *NoticeBoard) Take(ctx context.Context, key session.Key) *pages.Notice {
	n, ok := b.items.Peek(key)
	if !ok {
		return nil
	}
	b.items.Remove(key)

	left := b.ttl - b.now().Sub(n.createdAt)
	if left <= 0 {
		return nil
	}
	return &pages.Notice{
		Kind:        n.kind,
		Text:        i18n.T(ctx, n.key),
		ExpiresInMS: left.Milliseconds(),
	}
}
