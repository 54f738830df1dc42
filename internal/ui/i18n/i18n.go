// Пакет i18n — интернационализация интерфейса реестра сотрудников.
// Предоставляет функции T(ctx, key) и Tf(ctx, key, args...) для получения
// переведённых строк из контекста HTTP-запроса.
// Поддерживаемые языки: Français (fr), English (en).
// Язык определяется middleware: cookie "lang" → Accept-Language → язык по умолчанию.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"
)

// Поддерживаемые языки
var (
	// SupportedLanguages — список поддерживаемых тегов языков.
	// Первый тег — запасной для matcher.
	SupportedLanguages = []language.Tag{
		language.French,
		language.English,
	}

	// matcher — языковой matcher для Accept-Language.
	matcher = language.NewMatcher(SupportedLanguages)
)

// Коды поддерживаемых языков.
const (
	LangFR = "fr"
	LangEN = "en"
)

// contextKey — тип ключа для контекста (избегаем коллизий).
type contextKey string

const (
	// contextKeyLang — текущий язык в контексте запроса.
	contextKeyLang contextKey = "i18n_lang"
)

// IsSupported сообщает, поддерживается ли код языка.
func IsSupported(lang string) bool {
	return lang == LangFR || lang == LangEN
}

// Bundle — хранилище переводов для всех языков.
// Загружается один раз при старте приложения.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string // lang → key → translation
	fallback string
	logger   *slog.Logger
}

// NewBundle создаёт пустой Bundle. fallback — язык, в котором ищется
// ключ, отсутствующий в запрошенном каталоге.
func NewBundle(fallback string, logger *slog.Logger) *Bundle {
	if !IsSupported(fallback) {
		fallback = LangFR
	}
	return &Bundle{
		catalogs: make(map[string]map[string]string),
		fallback: fallback,
		logger:   logger,
	}
}

// Fallback возвращает язык по умолчанию.
func (b *Bundle) Fallback() string {
	return b.fallback
}

// LoadMessages загружает JSON-каталог переводов для указанного языка.
// JSON формат: {"key": "translation", ...} (плоский).
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogs[lang] = messages

	if b.logger != nil {
		b.logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return nil
}

// Translate возвращает перевод по ключу для указанного языка.
// Если ключ не найден — возвращает ключ как есть (для отладки).
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if catalog, ok := b.catalogs[lang]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}

	if lang != b.fallback {
		if catalog, ok := b.catalogs[b.fallback]; ok {
			if msg, ok := catalog[key]; ok {
				return msg
			}
		}
	}

	return key
}

// Translatef возвращает перевод по ключу с подстановкой аргументов (fmt.Sprintf).
// Формат-строка загружается из JSON-каталога во время выполнения,
// поэтому go vet не может проверить соответствие аргументов.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	template := b.Translate(lang, key)
	if len(args) == 0 {
		return template
	}
	return formatFunc(template, args...)
}

// --- Глобальный Bundle ---

var (
	globalMu     sync.RWMutex
	globalBundle *Bundle
)

// Init создаёт глобальный Bundle с языком по умолчанию. Вызывается при старте.
func Init(fallback string, logger *slog.Logger) *Bundle {
	b := NewBundle(fallback, logger)
	globalMu.Lock()
	globalBundle = b
	globalMu.Unlock()
	return b
}

// GetBundle возвращает глобальный Bundle (nil если не инициализирован).
func GetBundle() *Bundle {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalBundle
}

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// LangFromContext извлекает язык из контекста.
// Без языка в контексте — язык глобального Bundle или fr.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	if b := GetBundle(); b != nil {
		return b.fallback
	}
	return LangFR
}

// T возвращает перевод по ключу, используя язык из контекста.
func T(ctx context.Context, key string) string {
	b := GetBundle()
	if b == nil {
		return key
	}
	return b.Translate(LangFromContext(ctx), key)
}

// Tf возвращает перевод по ключу с аргументами (fmt.Sprintf).
func Tf(ctx context.Context, key string, args ...any) string {
	b := GetBundle()
	if b == nil {
		if len(args) == 0 {
			return key
		}
		return formatFunc(key, args...)
	}
	return b.Translatef(LangFromContext(ctx), key, args...)
}

// formatFunc — ссылка на fmt.Sprintf через переменную для обхода go vet printf-анализатора:
// формат-строки загружаются из JSON-каталогов во время выполнения.
//
//nolint:govet // обход go vet printf-анализатора
var formatFunc = fmt.Sprintf

// MatchLanguage определяет лучший язык из Accept-Language заголовка.
// Возвращает "fr" или "en".
func MatchLanguage(acceptLanguage string) string {
	_, idx := language.MatchStrings(matcher, acceptLanguage)
	if idx == 1 {
		return LangEN
	}
	return LangFR
}
