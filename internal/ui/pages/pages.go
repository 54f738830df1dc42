// Пакет pages — HTML-страницы веб-интерфейса (templ).
// Исходники — *.templ, *_templ.go генерируются командой templ generate.
// Здесь — данные страниц и их производные значения.
package pages

//go:generate templ generate

import (
	"github.com/bigkaa/workerreg/internal/domain/filter"
	"github.com/bigkaa/workerreg/internal/domain/model"
)

// Виды сообщений страницы.
const (
	KindSuccess = "success"
	KindError   = "error"
)

// Message — сообщение формы (вход, добавление записи).
// Остаётся на странице до следующего действия пользователя.
type Message struct {
	Kind string
	Text string
}

// Notice — уведомление списка. Скрывается через ExpiresInMS миллисекунд.
type Notice struct {
	Kind        string
	Text        string
	ExpiresInMS int64
}

// Режимы страницы входа.
const (
	ModeLogin  = "login"
	ModeSignup = "signup"
)

// AuthData — данные страницы /auth.
type AuthData struct {
	Mode    string
	Email   string
	Message *Message
}

// Signup сообщает, открыта ли форма регистрации.
func (d AuthData) Signup() bool { return d.Mode == ModeSignup }

// HomeData — данные домашней страницы.
type HomeData struct {
	Session *model.Session
}

// UserName — отображаемое имя пользователя.
func (d HomeData) UserName() string { return d.Session.DisplayName() }

// Initial — буква аватара.
func (d HomeData) Initial() string { return d.Session.Initial() }

// AddWorkerData — данные страницы добавления записи.
type AddWorkerData struct {
	Form    model.WorkerForm
	Message *Message
}

// WorkerListData — данные страницы списка.
type WorkerListData struct {
	Snapshot model.Snapshot
	// Workers — видимое подмножество после фильтра
	Workers []model.Worker
	// Total — размер загруженного набора
	Total  int
	Filter filter.Criteria
	Notice *Notice

	// Открытые панели: детали, редактирование, подтверждение удаления
	Viewing    *model.Worker
	Editing    *model.Worker
	Confirming *model.Worker

	// EditForm — отклонённые значения формы изменения.
	// Показываются в панели вместо полей записи Editing.
	EditForm *model.WorkerForm
}

// EditValues — значения полей панели изменения.
func (d WorkerListData) EditValues() model.WorkerForm {
	if d.EditForm != nil {
		return *d.EditForm
	}
	if d.Editing == nil {
		return model.WorkerForm{}
	}
	return d.Editing.Form()
}

// LoggedIn сообщает, доступны ли изменение и удаление.
func (d WorkerListData) LoggedIn() bool { return d.Snapshot.LoggedIn() }

// UserName — отображаемое имя пользователя.
func (d WorkerListData) UserName() string { return d.Snapshot.Session.DisplayName() }

// Email — адрес пользователя, пустой без сессии.
func (d WorkerListData) Email() string {
	if d.Snapshot.Session == nil {
		return ""
	}
	return d.Snapshot.Session.Email
}

// Initial — буква аватара.
func (d WorkerListData) Initial() string { return d.Snapshot.Session.Initial() }

// Filtered — размер видимого подмножества.
func (d WorkerListData) Filtered() int { return len(d.Workers) }
