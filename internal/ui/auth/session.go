// Пакет auth — cookie браузера для веб-интерфейса.
// Cookie устройства хранит ключ браузера (UUID) для хранилища сессий.
// Cookie сессии хранит токены провайдера, зашифрованные AES-256-GCM
// и привязанные к ключу устройства: с другим ключом она не открывается.
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/workerreg/internal/domain/model"
)

// Имена cookie.
const (
	SessionCookieName = "wr_session"
	DeviceCookieName  = "wr_device"
)

// Время жизни cookie. Сессия живёт, пока жив refresh token провайдера,
// ключ устройства — дольше любой сессии.
const (
	SessionCookieMaxAge = 7 * 24 * 60 * 60
	DeviceCookieMaxAge  = 365 * 24 * 60 * 60
)

// ErrForeignDevice — cookie сессии выпущена для другого ключа устройства
// или подделана.
var ErrForeignDevice = errors.New("cookie сессии не принадлежит устройству")

// providerCreds — содержимое cookie сессии: то, что нужно хранилищу
// сессий, чтобы проверить или обновить токены у провайдера.
type providerCreds struct {
	UserID       string `json:"uid"`
	Email        string `json:"em,omitempty"`
	AccessToken  string `json:"at"`
	RefreshToken string `json:"rt,omitempty"`
	// ExpiresAt — истечение access token, Unix-время
	ExpiresAt int64 `json:"exp"`
}

// SessionManager выдаёт и читает cookie устройства и сессии.
type SessionManager struct {
	gcm    cipher.AEAD
	secure bool
}

// NewSessionManager создаёт менеджер cookie.
// key — base64 от 32 байт или произвольная строка (хешируется SHA-256).
// Пустой key — случайный ключ: cookie сессий не переживают рестарт.
func NewSessionManager(key string, secure bool) (*SessionManager, error) {
	keyBytes, err := cipherKey(key)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}

	return &SessionManager{gcm: gcm, secure: secure}, nil
}

func cipherKey(key string) ([]byte, error) {
	if key == "" {
		b := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, b); err != nil {
			return nil, fmt.Errorf("ошибка генерации ключа сессии: %w", err)
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == 32 {
		return b, nil
	}
	h := sha256.Sum256([]byte(key))
	return h[:], nil
}

// DeviceKey возвращает ключ браузера из cookie устройства.
// Без cookie или с некорректным значением выдаётся новый UUID.
func (sm *SessionManager) DeviceKey(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(DeviceCookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}

	device := uuid.NewString()
	http.SetCookie(w, sm.cookie(DeviceCookieName, device, DeviceCookieMaxAge))
	return device
}

// SetSessionCookie сохраняет токены сессии в cookie, привязанной к device.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, device string, s *model.Session) error {
	value, err := sm.seal(device, s)
	if err != nil {
		return err
	}
	http.SetCookie(w, sm.cookie(SessionCookieName, value, SessionCookieMaxAge))
	return nil
}

// SessionFromRequest читает токены сессии для device.
// Без cookie — nil, nil; cookie чужого устройства — ErrForeignDevice.
func (sm *SessionManager) SessionFromRequest(r *http.Request, device string) (*model.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sm.open(device, cookie.Value)
}

// ClearSessionCookie удаляет cookie сессии. Cookie устройства остаётся.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, sm.cookie(SessionCookieName, "", -1))
}

func (sm *SessionManager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// seal шифрует токены; ключ устройства — дополнительные данные AEAD.
// Формат: base64url(nonce || ciphertext).
func (sm *SessionManager) seal(device string, s *model.Session) (string, error) {
	plaintext, err := json.Marshal(providerCreds{
		UserID:       s.UserID,
		Email:        s.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации сессии: %w", err)
	}

	nonce := make([]byte, sm.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}
	sealed := sm.gcm.Seal(nonce, nonce, plaintext, []byte(device))
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (sm *SessionManager) open(device, value string) (*model.Session, error) {
	sealed, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования cookie сессии: %w", err)
	}
	n := sm.gcm.NonceSize()
	if len(sealed) < n+sm.gcm.Overhead() {
		return nil, errors.New("cookie сессии слишком короткая")
	}

	plaintext, err := sm.gcm.Open(nil, sealed[:n], sealed[n:], []byte(device))
	if err != nil {
		return nil, ErrForeignDevice
	}

	var c providerCreds
	if err := json.Unmarshal(plaintext, &c); err != nil {
		return nil, fmt.Errorf("ошибка десериализации сессии: %w", err)
	}
	return &model.Session{
		UserID:       c.UserID,
		Email:        c.Email,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    time.Unix(c.ExpiresAt, 0).UTC(),
	}, nil
}
