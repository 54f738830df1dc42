// Пакет session — хранилище сессий (Session Store).
//
// Единственный экземпляр создаётся в main и передаётся компонентам явно.
// Состояние хранится по ключу браузера (долгоживущая cookie устройства),
// поэтому вкладки одного браузера разделяют поток событий.
//
// Каждое разрешение сессии получает порядковый номер из монотонного счётчика.
// Результат старше последнего применённого для ключа отбрасывается:
// побеждает самое свежее разрешение, а не самое позднее по времени завершения.
//
// Ошибки провайдера при разрешении трактуются как «сессия отсутствует».
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/supabase"
)

// Key — ключ браузера (значение cookie устройства).
type Key string

// EventKind — тип события сессии.
type EventKind string

const (
	// EventInitialSession — результат разрешения сессии
	EventInitialSession EventKind = "INITIAL_SESSION"
	// EventSignedIn — выполнен вход
	EventSignedIn EventKind = "SIGNED_IN"
	// EventSignedOut — выполнен выход
	EventSignedOut EventKind = "SIGNED_OUT"
	// EventTokenRefreshed — пара токенов обновлена
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event — событие изменения сессии для подписчиков ключа.
type Event struct {
	Kind     EventKind
	Key      Key
	Snapshot model.Snapshot
}

// Provider — операции провайдера аутентификации.
// Реализуется *supabase.Client.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*supabase.SignUpResponse, error)
	SignIn(ctx context.Context, email, password string) (*supabase.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*supabase.TokenResponse, error)
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Options — параметры хранилища.
type Options struct {
	// VerifyTTL — время жизни кэша проверенных access token
	VerifyTTL time.Duration
	// CacheSize — максимальное число ключей и токенов в кэшах
	CacheSize int
	// SnapshotTTL — время хранения последнего снимка ключа
	SnapshotTTL time.Duration
	// Buffer — ёмкость канала подписки
	Buffer int
}

func (o Options) withDefaults() Options {
	if o.VerifyTTL <= 0 {
		o.VerifyTTL = 30 * time.Second
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 10000
	}
	if o.SnapshotTTL <= 0 {
		o.SnapshotTTL = 12 * time.Hour
	}
	if o.Buffer <= 0 {
		o.Buffer = 8
	}
	return o
}

// Store — процессное хранилище сессий. Безопасно для конкурентного использования.
type Store struct {
	provider Provider
	logger   *slog.Logger
	opts     Options

	seq atomic.Uint64

	// Кэши с собственной синхронизацией
	verified  *expirable.LRU[string, supabase.User]
	refreshed *expirable.LRU[string, *supabase.TokenResponse]
	refreshes singleflight.Group

	// mu защищает снимки и подписки; все отправки в каналы выполняются под ним
	mu        sync.Mutex
	snapshots *expirable.LRU[Key, model.Snapshot]
	subs      map[Key]map[uint64]*Subscription
	nextSubID uint64
	closed    bool
}

// New создаёт хранилище сессий.
func New(provider Provider, opts Options, logger *slog.Logger) *Store {
	opts = opts.withDefaults()

	return &Store{
		provider:  provider,
		logger:    logger.With(slog.String("component", "session_store")),
		opts:      opts,
		verified:  expirable.NewLRU[string, supabase.User](opts.CacheSize, nil, opts.VerifyTTL),
		refreshed: expirable.NewLRU[string, *supabase.TokenResponse](opts.CacheSize, nil, opts.VerifyTTL),
		snapshots: expirable.NewLRU[Key, model.Snapshot](opts.CacheSize, nil, opts.SnapshotTTL),
		subs:      make(map[Key]map[uint64]*Subscription),
	}
}

// Snapshot возвращает последний применённый снимок ключа.
// Для неизвестного ключа возвращается Loading=true.
func (s *Store) Snapshot(key Key) model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots.Peek(key); ok {
		return snap
	}
	return model.Snapshot{Loading: true}
}

// Resolve разрешает сессию по учётным данным из cookie.
// Истёкший access token обновляется, затем пользователь проверяется у провайдера.
// Никогда не возвращает ошибку: любой сбой даёт отсутствующую сессию.
// Возвращаемый снимок может содержать обновлённую пару токенов.
func (s *Store) Resolve(ctx context.Context, key Key, creds *model.Session) model.Snapshot {
	seq := s.seq.Add(1)

	session, kind := s.resolve(ctx, creds)

	result := "absent"
	if session != nil {
		result = "present"
	}
	snap, applied := s.apply(key, seq, session, kind)
	if !applied {
		result = "stale"
		// Более свежий снимок чужого пользователя запросу не отдаётся:
		// иначе его токены попадут в cookie с другими учётными данными
		if !sameUser(snap.Session, session) {
			snap = model.Snapshot{Seq: snap.Seq}
		}
	}
	resolutionsTotal.WithLabelValues(result).Inc()

	return snap
}

// sameUser сообщает, принадлежат ли сессии одному пользователю.
// Две отсутствующие сессии считаются совпадающими.
func sameUser(a, b *model.Session) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UserID == b.UserID
}

// resolve выполняет обращения к провайдеру без блокировки хранилища.
func (s *Store) resolve(ctx context.Context, creds *model.Session) (*model.Session, EventKind) {
	if creds == nil || creds.AccessToken == "" {
		return nil, EventInitialSession
	}

	current := *creds
	kind := EventInitialSession

	if current.IsExpired() {
		if current.RefreshToken == "" {
			return nil, kind
		}
		token, err := s.refresh(ctx, current.RefreshToken)
		if err != nil {
			s.logger.Warn("Не удалось обновить токен, сессия считается отсутствующей",
				slog.String("user_id", current.UserID),
				slog.String("error", err.Error()),
			)
			return nil, kind
		}
		current = sessionFromToken(token)
		s.verified.Add(tokenHash(current.AccessToken), token.User)
		kind = EventTokenRefreshed
	}

	user, err := s.verify(ctx, current.AccessToken)
	if err != nil {
		s.logger.Warn("Проверка сессии не удалась, сессия считается отсутствующей",
			slog.String("user_id", current.UserID),
			slog.String("error", err.Error()),
		)
		return nil, EventInitialSession
	}

	current.UserID = user.ID
	if user.Email != "" {
		current.Email = user.Email
	}
	return &current, kind
}

// refresh обменивает refresh token. Конкурентные запросы с одним токеном
// разделяют один вызов провайдера; результат кэшируется на VerifyTTL,
// так как провайдер ротирует refresh token.
func (s *Store) refresh(ctx context.Context, refreshToken string) (*supabase.TokenResponse, error) {
	h := tokenHash(refreshToken)
	if token, ok := s.refreshed.Get(h); ok {
		return token, nil
	}

	v, err, _ := s.refreshes.Do(h, func() (any, error) {
		if token, ok := s.refreshed.Get(h); ok {
			return token, nil
		}
		token, err := s.provider.Refresh(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		s.refreshed.Add(h, token)
		return token, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*supabase.TokenResponse), nil
}

// verify проверяет access token у провайдера с кэшированием.
func (s *Store) verify(ctx context.Context, accessToken string) (supabase.User, error) {
	h := tokenHash(accessToken)
	if user, ok := s.verified.Get(h); ok {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return user, nil
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()

	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		return supabase.User{}, err
	}
	s.verified.Add(h, *user)
	return *user, nil
}

// apply применяет результат с номером seq к ключу и публикует событие.
// Возвращает актуальный снимок и признак применения.
func (s *Store) apply(key Key, seq uint64, session *model.Session, kind EventKind) (model.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev := s.snapshots.Peek(key)
	if hadPrev && prev.Seq > seq {
		s.logger.Debug("Устаревший результат разрешения сессии отброшен",
			slog.Uint64("seq", seq),
			slog.Uint64("current_seq", prev.Seq),
		)
		return prev, false
	}

	snap := model.Snapshot{Session: session, Seq: seq}
	s.snapshots.Add(key, snap)

	// INITIAL_SESSION публикуется только при смене присутствия сессии
	changed := !hadPrev || prev.LoggedIn() != snap.LoggedIn()
	if kind != EventInitialSession || changed {
		s.publishLocked(Event{Kind: kind, Key: key, Snapshot: snap})
	}
	return snap, true
}

// SignUp регистрирует пользователя. Вход не выполняется.
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	res, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return mapProviderError(err, apperr.AuthUnknown)
	}
	if !res.Registered() {
		return apperr.NewAuthError(apperr.AuthUserAlreadyExists, nil)
	}

	s.logger.Info("Пользователь зарегистрирован", slog.String("user_id", res.User.ID))
	return nil
}

// SignIn выполняет вход, применяет новую сессию к ключу и публикует SIGNED_IN.
func (s *Store) SignIn(ctx context.Context, key Key, email, password string) (model.Snapshot, error) {
	token, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return s.Snapshot(key), mapProviderError(err, apperr.AuthInvalidCredentials)
	}

	session := sessionFromToken(token)
	s.verified.Add(tokenHash(session.AccessToken), token.User)

	snap, _ := s.apply(key, s.seq.Add(1), &session, EventSignedIn)

	s.logger.Info("Вход выполнен", slog.String("user_id", session.UserID))
	return snap, nil
}

// SignOut отзывает сессию у провайдера и всегда применяет отсутствующую сессию.
// Сбой провайдера возвращается как AuthError после локального выхода.
func (s *Store) SignOut(ctx context.Context, key Key, session *model.Session) error {
	var providerErr error
	if session != nil && session.AccessToken != "" {
		s.verified.Remove(tokenHash(session.AccessToken))
		providerErr = s.provider.SignOut(ctx, session.AccessToken)
	}

	s.apply(key, s.seq.Add(1), nil, EventSignedOut)

	if providerErr != nil {
		s.logger.Warn("Провайдер не подтвердил выход", slog.String("error", providerErr.Error()))
		return apperr.NewAuthError(apperr.AuthSignOutFailed, providerErr)
	}
	return nil
}

// Close закрывает все подписки. Последующие подписки создаются закрытыми.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for key, subs := range s.subs {
		for _, sub := range subs {
			sub.release()
		}
		delete(s.subs, key)
	}
	activeSubscriptions.Set(0)
}

// sessionFromToken строит сессию из ответа провайдера.
func sessionFromToken(token *supabase.TokenResponse) model.Session {
	return model.Session{
		UserID:       token.User.ID,
		Email:        token.User.Email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry(time.Now()),
	}
}

// tokenHash — ключ кэша; сами токены в памяти кэша не хранятся.
func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
