package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bigkaa/workerreg/internal/domain/model"
)

const (
	deviceA = "0b9f2c4e-5d6a-4f1b-9c3e-7a8b9c0d1e2f"
	deviceB = "9d3e1f20-1111-4222-8333-944455556666"
)

func testSession() *model.Session {
	return &model.Session{
		UserID:       "u-1",
		Email:        "amani@example.com",
		AccessToken:  "test-access-token-12345",
		RefreshToken: "test-refresh-token-67890",
		ExpiresAt:    time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second),
	}
}

// TestSealOpen — токены провайдера восстанавливаются тем же устройством.
func TestSealOpen(t *testing.T) {
	keys := []struct {
		name string
		key  string
	}{
		{"случайный ключ", ""},
		{"строка", "my-secret-key-for-testing"},
		{"base64 32 байта", "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="},
	}

	for _, k := range keys {
		t.Run(k.name, func(t *testing.T) {
			sm, err := NewSessionManager(k.key, false)
			if err != nil {
				t.Fatalf("Ошибка создания SessionManager: %v", err)
			}

			original := testSession()
			sealed, err := sm.seal(deviceA, original)
			if err != nil {
				t.Fatalf("Ошибка шифрования: %v", err)
			}

			got, err := sm.open(deviceA, sealed)
			if err != nil {
				t.Fatalf("Ошибка дешифрования: %v", err)
			}
			if diff := cmp.Diff(original, got); diff != "" {
				t.Errorf("сессия (-want +got):\n%s", diff)
			}
		})
	}
}

// TestOpen_ForeignDevice — cookie не открывается с другим ключом устройства
// или другим секретом.
func TestOpen_ForeignDevice(t *testing.T) {
	sm1, _ := NewSessionManager("key-one", false)
	sm2, _ := NewSessionManager("key-two", false)

	sealed, err := sm1.seal(deviceA, testSession())
	if err != nil {
		t.Fatalf("Ошибка шифрования: %v", err)
	}

	if _, err := sm1.open(deviceB, sealed); !errors.Is(err, ErrForeignDevice) {
		t.Errorf("другое устройство: ожидалась ErrForeignDevice, получено %v", err)
	}
	if _, err := sm2.open(deviceA, sealed); !errors.Is(err, ErrForeignDevice) {
		t.Errorf("другой секрет: ожидалась ErrForeignDevice, получено %v", err)
	}
}

// TestOpen_Garbage — повреждённое значение cookie.
func TestOpen_Garbage(t *testing.T) {
	sm, _ := NewSessionManager("test-key", false)

	for _, value := range []string{"%%%", "YQ==", ""} {
		if _, err := sm.open(deviceA, value); err == nil {
			t.Errorf("open(%q): ожидалась ошибка", value)
		}
	}
}

// TestSessionCookie — cookie сессии выставляется и читается для того же устройства.
func TestSessionCookie(t *testing.T) {
	sm, _ := NewSessionManager("test-key", true)
	data := testSession()

	w := httptest.NewRecorder()
	if err := sm.SetSessionCookie(w, deviceA, data); err != nil {
		t.Fatalf("Ошибка установки cookie: %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("ожидалась одна cookie: %+v", cookies)
	}

	cookie := cookies[0]
	if cookie.Name != SessionCookieName || cookie.Path != "/" || cookie.MaxAge != SessionCookieMaxAge {
		t.Errorf("атрибуты cookie: %+v", cookie)
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("флаги cookie: HttpOnly=%v Secure=%v SameSite=%v", cookie.HttpOnly, cookie.Secure, cookie.SameSite)
	}

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(cookie)

	got, err := sm.SessionFromRequest(req, deviceA)
	if err != nil {
		t.Fatalf("Ошибка чтения сессии из cookie: %v", err)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Errorf("сессия (-want +got):\n%s", diff)
	}

	if _, err := sm.SessionFromRequest(req, deviceB); !errors.Is(err, ErrForeignDevice) {
		t.Errorf("чужое устройство: %v", err)
	}
}

// TestSessionFromRequest_Missing — без cookie сессии nil, nil.
func TestSessionFromRequest_Missing(t *testing.T) {
	sm, _ := NewSessionManager("test-key", false)

	got, err := sm.SessionFromRequest(httptest.NewRequest(http.MethodGet, "/home", nil), deviceA)
	if err != nil || got != nil {
		t.Errorf("ожидалось nil, nil; получено %+v, %v", got, err)
	}
}

// TestClearSessionCookie — очистка удаляет только cookie сессии.
func TestClearSessionCookie(t *testing.T) {
	sm, _ := NewSessionManager("test-key", false)

	w := httptest.NewRecorder()
	sm.ClearSessionCookie(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("ожидалась одна cookie: %+v", cookies)
	}
	if c := cookies[0]; c.Name != SessionCookieName || c.MaxAge != -1 || c.Value != "" {
		t.Errorf("cookie очистки: %+v", c)
	}
}

// TestDeviceKey — ключ браузера создаётся один раз и затем читается из cookie.
func TestDeviceKey(t *testing.T) {
	sm, _ := NewSessionManager("test-key", false)

	// Первый запрос: cookie нет, ключ создаётся
	w := httptest.NewRecorder()
	key := sm.DeviceKey(w, httptest.NewRequest(http.MethodGet, "/auth", nil))
	if key == "" {
		t.Fatal("ключ устройства пустой")
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != DeviceCookieName || cookies[0].Value != key {
		t.Fatalf("cookie устройства не выставлена: %+v", cookies)
	}
	if cookies[0].MaxAge != DeviceCookieMaxAge {
		t.Errorf("MaxAge = %d", cookies[0].MaxAge)
	}

	// Повторный запрос с cookie: тот же ключ, новая cookie не выставляется
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()
	if got := sm.DeviceKey(w2, req); got != key {
		t.Errorf("ключ изменился: %q → %q", key, got)
	}
	if len(w2.Result().Cookies()) != 0 {
		t.Error("существующая cookie не должна перевыставляться")
	}

	// Некорректное значение заменяется
	bad := httptest.NewRequest(http.MethodGet, "/home", nil)
	bad.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: "not-a-uuid"})
	if got := sm.DeviceKey(httptest.NewRecorder(), bad); got == "not-a-uuid" {
		t.Error("некорректный ключ должен заменяться")
	}
}
