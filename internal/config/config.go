// Пакет config — загрузка и валидация конфигурации реестра сотрудников
// из переменных окружения (префикс WR_).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые backend хранилища записей.
const (
	// BackendREST — REST-шлюз BaaS (PostgREST), значение по умолчанию.
	BackendREST = "rest"
	// BackendPostgres — прямое подключение к PostgreSQL через pgx.
	BackendPostgres = "postgres"
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- BaaS (auth provider + REST gateway) ---

	// Базовый URL проекта BaaS (например, https://xyz.supabase.co)
	SupabaseURL string
	// Публичный (anon) API-ключ проекта
	SupabaseAnonKey string
	// Имя таблицы записей о сотрудниках
	WorkersTable string
	// Таймаут HTTP-запросов к BaaS
	HTTPTimeout time.Duration

	// --- Хранилище ---

	// Backend хранилища записей: rest или postgres
	StorageBackend string

	// --- PostgreSQL (только для backend postgres) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Сессии UI ---

	// Ключ шифрования session cookie (AES-256-GCM)
	SessionSecret string
	// Secure flag для cookie
	CookieSecure bool
	// TTL кэша проверенных access token
	SessionCacheTTL time.Duration
	// Максимальный размер кэша сессий (по ключам браузеров)
	SessionCacheSize int

	// --- UI ---

	// Время жизни уведомлений на странице списка
	NoticeTTL time.Duration
	// Интервал keep-alive для SSE-потока сессии
	SSEKeepAlive time.Duration
	// Размер кэша последнего загруженного списка
	ListCacheSize int
	// TTL кэша последнего загруженного списка
	ListCacheTTL time.Duration
	// Язык интерфейса по умолчанию (fr, en)
	DefaultLang string

	// --- JSON API ---

	// Включить /api/v1
	APIEnabled bool
	// URL JWKS endpoint провайдера (авто-вычисляется из SupabaseURL)
	JWTJWKSURL string
	// Issuer JWT (авто-вычисляется из SupabaseURL)
	JWTIssuer string
	// Общий секрет HS256 (опционально, вместо JWKS)
	JWTSecret string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration

	// --- topologymetrics ---

	// Имя группы в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Путь health endpoint провайдера аутентификации
	DephealthAuthPath string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// WR_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("WR_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("WR_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("WR_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// WR_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("WR_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("WR_LOG_LEVEL: %w", err)
	}

	// WR_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("WR_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("WR_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- BaaS ---

	// WR_SUPABASE_URL — обязательный
	cfg.SupabaseURL, err = getEnvRequired("WR_SUPABASE_URL")
	if err != nil {
		return nil, err
	}
	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")

	// WR_SUPABASE_ANON_KEY — обязательный
	cfg.SupabaseAnonKey, err = getEnvRequired("WR_SUPABASE_ANON_KEY")
	if err != nil {
		return nil, err
	}

	// WR_WORKERS_TABLE — имя таблицы (по умолчанию workers)
	cfg.WorkersTable = getEnvDefault("WR_WORKERS_TABLE", "workers")

	cfg.HTTPTimeout, err = getEnvDuration("WR_HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_HTTP_TIMEOUT: %w", err)
	}

	// --- Хранилище ---

	cfg.StorageBackend = strings.ToLower(getEnvDefault("WR_STORAGE_BACKEND", BackendREST))
	if cfg.StorageBackend != BackendREST && cfg.StorageBackend != BackendPostgres {
		return nil, fmt.Errorf("WR_STORAGE_BACKEND: недопустимое значение %q, допустимые: rest, postgres", cfg.StorageBackend)
	}

	if cfg.StorageBackend == BackendPostgres {
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	}

	// --- Сессии UI ---

	// WR_SESSION_SECRET — опционально; без него ключ генерируется при старте
	cfg.SessionSecret = getEnvDefault("WR_SESSION_SECRET", "")

	cfg.CookieSecure, err = getEnvBool("WR_COOKIE_SECURE", strings.HasPrefix(cfg.SupabaseURL, "https"))
	if err != nil {
		return nil, fmt.Errorf("WR_COOKIE_SECURE: %w", err)
	}

	cfg.SessionCacheTTL, err = getEnvDuration("WR_SESSION_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_SESSION_CACHE_TTL: %w", err)
	}

	cfg.SessionCacheSize, err = getEnvInt("WR_SESSION_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("WR_SESSION_CACHE_SIZE: %w", err)
	}
	if cfg.SessionCacheSize < 1 {
		return nil, fmt.Errorf("WR_SESSION_CACHE_SIZE: значение %d должно быть положительным", cfg.SessionCacheSize)
	}

	// --- UI ---

	// WR_NOTICE_TTL — время показа уведомлений списка (по умолчанию 5s)
	cfg.NoticeTTL, err = getEnvDuration("WR_NOTICE_TTL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_NOTICE_TTL: %w", err)
	}

	cfg.SSEKeepAlive, err = getEnvDuration("WR_SSE_KEEPALIVE", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_SSE_KEEPALIVE: %w", err)
	}

	cfg.ListCacheSize, err = getEnvInt("WR_LIST_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("WR_LIST_CACHE_SIZE: %w", err)
	}
	if cfg.ListCacheSize < 1 {
		return nil, fmt.Errorf("WR_LIST_CACHE_SIZE: значение %d должно быть положительным", cfg.ListCacheSize)
	}

	cfg.ListCacheTTL, err = getEnvDuration("WR_LIST_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("WR_LIST_CACHE_TTL: %w", err)
	}

	cfg.DefaultLang = getEnvDefault("WR_DEFAULT_LANG", "fr")
	if cfg.DefaultLang != "fr" && cfg.DefaultLang != "en" {
		return nil, fmt.Errorf("WR_DEFAULT_LANG: недопустимое значение %q, допустимые: fr, en", cfg.DefaultLang)
	}

	// --- JSON API ---

	cfg.APIEnabled, err = getEnvBool("WR_API_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("WR_API_ENABLED: %w", err)
	}

	// WR_JWT_JWKS_URL — авто-вычисляется из SupabaseURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("WR_JWT_JWKS_URL", cfg.SupabaseURL+"/auth/v1/.well-known/jwks.json")

	// WR_JWT_ISSUER — авто-вычисляется из SupabaseURL, если не задан
	cfg.JWTIssuer = getEnvDefault("WR_JWT_ISSUER", cfg.SupabaseURL+"/auth/v1")

	cfg.JWTSecret = getEnvDefault("WR_JWT_SECRET", "")

	cfg.JWTLeeway, err = getEnvDuration("WR_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_JWT_LEEWAY: %w", err)
	}

	cfg.JWKSRefreshInterval, err = getEnvDuration("WR_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("WR_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("WR_DEPHEALTH_GROUP", "workerreg")

	cfg.DephealthCheckInterval, err = getEnvDuration("WR_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.DephealthAuthPath = getEnvDefault("WR_DEPHEALTH_AUTH_PATH", "/auth/v1/health")

	// --- Graceful shutdown ---

	// WR_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("WR_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadDatabase читает параметры PostgreSQL. Вызывается только для backend postgres.
func loadDatabase(cfg *Config) error {
	var err error

	if cfg.DBHost, err = getEnvRequired("WR_DB_HOST"); err != nil {
		return err
	}

	cfg.DBPort, err = getEnvInt("WR_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("WR_DB_PORT: %w", err)
	}

	if cfg.DBName, err = getEnvRequired("WR_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = getEnvRequired("WR_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = getEnvRequired("WR_DB_PASSWORD"); err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("WR_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("WR_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения (для меток topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// UsesPostgres сообщает, хранятся ли записи в PostgreSQL напрямую.
func (c *Config) UsesPostgres() bool {
	return c.StorageBackend == BackendPostgres
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает логическое значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q (используйте true/false)", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
