package model

import (
	"strings"
	"time"
)

// Session — сессия, выданная провайдером аутентификации.
// Принадлежит Session Store; остальные компоненты видят только снимок.
type Session struct {
	// UserID — subject id пользователя
	UserID string `json:"user_id"`
	// Email — адрес пользователя
	Email string `json:"email"`
	// AccessToken — JWT доступа
	AccessToken string `json:"access_token"`
	// RefreshToken — токен обновления
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt — время истечения access token
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired проверяет, истёк ли access token (с буфером 30 секунд).
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt.Add(-30 * time.Second))
}

// DisplayName возвращает локальную часть e-mail или "Utilisateur".
func (s *Session) DisplayName() string {
	if s == nil || s.Email == "" {
		return "Utilisateur"
	}
	local, _, _ := strings.Cut(s.Email, "@")
	if local == "" {
		return "Utilisateur"
	}
	return local
}

// Initial возвращает первую букву e-mail в верхнем регистре.
func (s *Session) Initial() string {
	if s == nil {
		return "U"
	}
	if r := firstRune(s.Email); r != "" {
		return r
	}
	return "U"
}

// Snapshot — неизменяемый снимок состояния сессии в момент времени.
// Loading=true означает «ещё не разрешена»; Session=nil при Loading=false — «разрешена, отсутствует».
type Snapshot struct {
	Session *Session
	Loading bool
	// Seq — номер разрешения, из которого получен снимок
	Seq uint64
}

// LoggedIn сообщает, есть ли в снимке действующая сессия.
func (s Snapshot) LoggedIn() bool {
	return !s.Loading && s.Session != nil
}

// UserID возвращает subject id или пустую строку.
func (s Snapshot) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.UserID
}

// AccessToken возвращает access token или пустую строку.
func (s Snapshot) AccessToken() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.AccessToken
}
