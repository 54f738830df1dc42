// format.go — даты, плашки справочников, ссылки списка.
package pages

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/a-h/templ"

	"github.com/bigkaa/workerreg/internal/domain/filter"
	"github.com/bigkaa/workerreg/internal/domain/model"
	"github.com/bigkaa/workerreg/internal/ui/i18n"
)

var (
	frMonthsShort = [...]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."}
	frMonthsLong  = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}
)

// ShortDate — дата в кратком виде: «15 janv. 2024» (fr) или «Jan 15, 2024» (en).
func ShortDate(lang string, d model.Date) string {
	if d.IsZero() {
		return ""
	}
	if lang == i18n.LangEN {
		return d.Format("Jan 2, 2006")
	}
	return fmt.Sprintf("%d %s %d", d.Day(), frMonthsShort[d.Month()-1], d.Year())
}

// LongDate — дата с полным названием месяца: «15 janvier 2024».
func LongDate(lang string, d model.Date) string {
	if d.IsZero() {
		return ""
	}
	if lang == i18n.LangEN {
		return d.Format("January 2, 2006")
	}
	return fmt.Sprintf("%d %s %d", d.Day(), frMonthsLong[d.Month()-1], d.Year())
}

// Timestamp — время создания записи: «15 janvier 2024 à 09:30».
func Timestamp(lang string, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if lang == i18n.LangEN {
		return t.Format("January 2, 2006 at 15:04")
	}
	return fmt.Sprintf("%d %s %d à %02d:%02d", t.Day(), frMonthsLong[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// FilterQuery кодирует фильтр списка в строку запроса.
func FilterQuery(c filter.Criteria) string {
	q := url.Values{}
	if c.Department != "" {
		q.Set("departement", c.Department)
	}
	if c.Search != "" {
		q.Set("q", c.Search)
	}
	return q.Encode()
}

// ListURL — ссылка на список с сохранённым фильтром и открытой панелью.
// panel — view, edit или confirm; пустой panel закрывает панели.
func ListURL(c filter.Criteria, panel, id string) string {
	q := url.Values{}
	if c.Department != "" {
		q.Set("departement", c.Department)
	}
	if c.Search != "" {
		q.Set("q", c.Search)
	}
	if panel != "" && id != "" {
		q.Set(panel, id)
	}
	if len(q) == 0 {
		return "/worker-list"
	}
	return "/worker-list?" + q.Encode()
}

// actionURL — адрес POST-действия над записью с сохранённым фильтром.
func actionURL(c filter.Criteria, id, action string) string {
	u := "/worker-list/" + url.PathEscape(id) + "/" + action
	if q := FilterQuery(c); q != "" {
		u += "?" + q
	}
	return u
}

func shortID(id string) string {
	r := []rune(id)
	if len(r) <= 8 {
		return id
	}
	return string(r[:8]) + "..."
}

// badge — цветная плашка значения справочника.
// color — #rrggbb из справочников model.
func badge(value, color string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<span class="badge" style="background-color: `+
			templ.EscapeString(color)+`">`+templ.EscapeString(value)+`</span>`)
		return err
	})
}
