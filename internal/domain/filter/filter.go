// Пакет filter — вычисление видимого подмножества списка сотрудников.
package filter

import (
	"strings"

	"github.com/bigkaa/workerreg/internal/domain/model"
)

// Criteria — эфемерное состояние фильтра списка.
// Пустой Department — без фильтра по отделу; пустой Search совпадает со всем.
type Criteria struct {
	Department string
	Search     string
}

// IsZero сообщает, что фильтр не ограничивает выборку.
func (c Criteria) IsZero() bool {
	return c.Department == "" && c.Search == ""
}

// Matches проверяет одну запись.
// Отдел сравнивается на равенство. Термин ищется без учёта регистра в
// nom, prenom, postnom, departement, niveau_etudes и sexe; в телефоне —
// как есть, без смены регистра.
func (c Criteria) Matches(w model.Worker) bool {
	if c.Department != "" && w.Department != c.Department {
		return false
	}
	if c.Search == "" {
		return true
	}

	term := strings.ToLower(c.Search)
	for _, field := range []string{
		w.FamilyName, w.GivenName, w.PostName,
		w.Department, w.Education, w.Gender,
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return strings.Contains(w.Phone, c.Search)
}

// Apply возвращает записи, удовлетворяющие критериям, в исходном порядке.
// Исходный срез не изменяется.
func Apply(workers []model.Worker, c Criteria) []model.Worker {
	visible := make([]model.Worker, 0, len(workers))
	for _, w := range workers {
		if c.Matches(w) {
			visible = append(visible, w)
		}
	}
	return visible
}
