package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout — формат календарной даты в хранилище и HTML-формах.
const DateLayout = "2006-01-02"

// Worker — запись о сотруднике.
// Хранится во внешней таблице workers (BaaS) или в локальном PostgreSQL.
type Worker struct {
	// ID — идентификатор, назначенный хранилищем, неизменяемый
	ID string `json:"id" db:"id"`
	// FamilyName — фамилия (nom)
	FamilyName string `json:"nom" db:"nom"`
	// PostName — постимя (postnom)
	PostName string `json:"postnom" db:"postnom"`
	// GivenName — имя (prenom)
	GivenName string `json:"prenom" db:"prenom"`
	// Phone — телефон в свободном формате
	Phone string `json:"telephone" db:"telephone"`
	// Department — отдел, значение из Departments
	Department string `json:"departement" db:"departement"`
	// Education — уровень образования, значение из EducationLevels
	Education string `json:"niveau_etudes" db:"niveau_etudes"`
	// Gender — пол, значение из Genders
	Gender string `json:"sexe" db:"sexe"`
	// JoinDate — дата вступления
	JoinDate Date `json:"date_adhesion" db:"date_adhesion"`
	// CreatedBy — subject id создателя, задаётся один раз при вставке
	CreatedBy string `json:"created_by" db:"created_by"`
	// CreatedAt — время создания, задаётся хранилищем
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FullName возвращает «nom postnom prenom».
func (w Worker) FullName() string {
	return strings.Join([]string{w.FamilyName, w.PostName, w.GivenName}, " ")
}

// Initials возвращает первые буквы фамилии и имени.
func (w Worker) Initials() string {
	return firstRune(w.FamilyName) + firstRune(w.GivenName)
}

// Form возвращает данные формы, заполненные значениями записи (для редактирования).
func (w Worker) Form() WorkerForm {
	return WorkerForm{
		FamilyName: w.FamilyName,
		PostName:   w.PostName,
		GivenName:  w.GivenName,
		Phone:      w.Phone,
		Department: w.Department,
		Education:  w.Education,
		Gender:     w.Gender,
		JoinDate:   w.JoinDate.String(),
	}
}

// WorkerForm — изменяемые поля записи, как они приходят из формы или JSON API.
// Идентификатор, создатель и время создания сюда не входят.
type WorkerForm struct {
	FamilyName string `json:"nom" validate:"required,max=100"`
	PostName   string `json:"postnom" validate:"required,max=100"`
	GivenName  string `json:"prenom" validate:"required,max=100"`
	Phone      string `json:"telephone" validate:"required,max=32"`
	Department string `json:"departement" validate:"required,department"`
	Education  string `json:"niveau_etudes" validate:"required,education"`
	Gender     string `json:"sexe" validate:"required,gender"`
	JoinDate   string `json:"date_adhesion" validate:"required,isodate"`
}

// Normalize обрезает пробелы по краям всех полей.
func (f WorkerForm) Normalize() WorkerForm {
	return WorkerForm{
		FamilyName: strings.TrimSpace(f.FamilyName),
		PostName:   strings.TrimSpace(f.PostName),
		GivenName:  strings.TrimSpace(f.GivenName),
		Phone:      strings.TrimSpace(f.Phone),
		Department: strings.TrimSpace(f.Department),
		Education:  strings.TrimSpace(f.Education),
		Gender:     strings.TrimSpace(f.Gender),
		JoinDate:   strings.TrimSpace(f.JoinDate),
	}
}

// NewWorkerForm возвращает пустую форму в начальном состоянии.
// Пол по умолчанию — Masculin.
func NewWorkerForm() WorkerForm {
	return WorkerForm{Gender: GenderMale}
}

// ListFilter — параметры выборки списка. Пустой Department означает «без фильтра».
type ListFilter struct {
	Department string
}

// --- Date ---

// Date — календарная дата без времени (YYYY-MM-DD).
type Date struct {
	time.Time
}

// NewDate создаёт Date из компонентов.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("некорректная дата %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String возвращает дату в формате YYYY-MM-DD, пустую строку для нулевой даты.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON сериализует дату как "YYYY-MM-DD" или null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON принимает "YYYY-MM-DD", полный RFC 3339 или null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(DateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("некорректная дата %q: %w", s, err)
		}
		*d = NewDate(t.Year(), t.Month(), t.Day())
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan реализует sql.Scanner для колонки типа date.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("неподдерживаемый тип даты: %T", src)
	}
}

// Value реализует driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func firstRune(s string) string {
	for _, r := range s {
		return strings.ToUpper(string(r))
	}
	return ""
}
