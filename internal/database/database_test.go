package database

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/workerreg/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
// Возвращает конфиг с параметрами подключения.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("workerreg_test"),
		postgres.WithUsername("workerreg"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("WR_SUPABASE_URL", "http://localhost:54321")
	t.Setenv("WR_SUPABASE_ANON_KEY", "anon")
	t.Setenv("WR_STORAGE_BACKEND", "postgres")
	t.Setenv("WR_DB_HOST", host)
	t.Setenv("WR_DB_PORT", port.Port())
	t.Setenv("WR_DB_NAME", "workerreg_test")
	t.Setenv("WR_DB_USER", "workerreg")
	t.Setenv("WR_DB_PASSWORD", "test-password")
	t.Setenv("WR_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestMigrateURL проверяет экранирование учётных данных в URL миграций.
func TestMigrateURL(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db.local",
		DBPort:     5433,
		DBName:     "workerreg",
		DBUser:     "wr",
		DBPassword: "p@ss/word",
		DBSSLMode:  "require",
	}

	raw := migrateURL(cfg)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	if u.Scheme != "pgx5" || u.Host != "db.local:5433" || u.Path != "/workerreg" {
		t.Errorf("migrateURL() = %q", raw)
	}
	if pass, _ := u.User.Password(); pass != "p@ss/word" {
		t.Errorf("пароль после разбора = %q, ожидается p@ss/word", pass)
	}
	if u.Query().Get("sslmode") != "require" {
		t.Errorf("sslmode = %q", u.Query().Get("sslmode"))
	}
}

// TestMigrationsEmbedded проверяет, что SQL-миграции встроены в бинарник.
func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("встроено %d файлов миграций, ожидается минимум up и down", len(entries))
	}
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}
}

// TestMigrate проверяет применение миграций и неизменяемость полей создания.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	// Повторное применение — должно быть без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, "workers").Scan(&exists)
	if err != nil {
		t.Fatalf("Ошибка проверки таблицы workers: %v", err)
	}
	if !exists {
		t.Fatal("Таблица workers не создана")
	}

	// Триггер сохраняет created_by при UPDATE
	var id string
	err = pool.QueryRow(ctx, `
		INSERT INTO workers (nom, postnom, prenom, telephone, departement, niveau_etudes, sexe, date_adhesion, created_by)
		VALUES ('Mbuyi', 'Kabeya', 'Jean', '+243', 'Finance', 'G3', 'Masculin', '2024-01-15', 'u1')
		RETURNING id`).Scan(&id)
	if err != nil {
		t.Fatalf("INSERT: %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE workers SET created_by = 'u2', nom = 'X' WHERE id = $1`, id); err != nil {
		t.Fatalf("UPDATE: %v", err)
	}
	var createdBy, nom string
	if err := pool.QueryRow(ctx, `SELECT created_by, nom FROM workers WHERE id = $1`, id).Scan(&createdBy, &nom); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if createdBy != "u1" {
		t.Errorf("created_by = %q после UPDATE, ожидается u1", createdBy)
	}
	if nom != "X" {
		t.Errorf("nom = %q, ожидается X", nom)
	}
}

// TestReadinessChecker проверяет ReadinessChecker.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}

	checker := NewReadinessChecker(pool)

	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали status = %q", status, msg, "ok")
	}

	pool.Close()
	if status, _ := checker.CheckReady(); status != "fail" {
		t.Errorf("CheckReady() после Close = %q, ожидали fail", status)
	}
}
