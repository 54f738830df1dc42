package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bigkaa/workerreg/internal/domain/model"
)

func sampleWorkers() []model.Worker {
	return []model.Worker{
		{ID: "1", FamilyName: "Kalonji", PostName: "Tshibanda", GivenName: "Marie",
			Phone: "0990000000", Department: "Informatique", Education: "Master", Gender: model.GenderFemale},
		{ID: "2", FamilyName: "Mbuyi", PostName: "Kabeya", GivenName: "Jean",
			Phone: "+243 81 234 5678", Department: "Finance", Education: "G3", Gender: model.GenderMale},
		{ID: "3", FamilyName: "Ilunga", PostName: "Mutombo", GivenName: "Paul",
			Phone: "0812223344", Department: "Finance", Education: "Doctorat", Gender: model.GenderMale},
	}
}

func ids(workers []model.Worker) []string {
	out := make([]string, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"пустой фильтр", Criteria{}, []string{"1", "2", "3"}},
		{"отдел Finance", Criteria{Department: "Finance"}, []string{"2", "3"}},
		{"отдел без записей", Criteria{Department: "Juridique"}, []string{}},
		{"фамилия без учёта регистра", Criteria{Search: "kalONJI"}, []string{"1"}},
		{"postnom", Criteria{Search: "kabeya"}, []string{"2"}},
		{"уровень образования", Criteria{Search: "doct"}, []string{"3"}},
		{"пол", Criteria{Search: "féminin"}, []string{"1"}},
		{"отдел как термин", Criteria{Search: "informatique"}, []string{"1"}},
		{"телефон 243", Criteria{Search: "243"}, []string{"2"}},
		{"отсутствующий термин", Criteria{Search: "xyz"}, []string{}},
		{"отдел и термин", Criteria{Department: "Finance", Search: "paul"}, []string{"3"}},
		{"отдел и чужой термин", Criteria{Department: "Finance", Search: "marie"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(sampleWorkers(), tt.criteria))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply(%+v) (-want +got):\n%s", tt.criteria, diff)
			}
		})
	}
}

// TestApply_PhoneVerbatim проверяет, что телефон сравнивается без смены регистра.
func TestApply_PhoneVerbatim(t *testing.T) {
	workers := []model.Worker{{ID: "x", FamilyName: "A", Phone: "EXT-12"}}

	if got := Apply(workers, Criteria{Search: "EXT"}); len(got) != 1 {
		t.Errorf("термин EXT должен совпасть с телефоном EXT-12")
	}
	if got := Apply(workers, Criteria{Search: "ext"}); len(got) != 0 {
		t.Errorf("термин ext не должен совпасть с телефоном EXT-12 (сравнение как есть)")
	}
}

// TestApply_Law проверяет закон фильтрации для всех комбинаций отдела и термина.
func TestApply_Law(t *testing.T) {
	workers := sampleWorkers()
	departments := []string{""}
	for _, d := range model.Departments {
		departments = append(departments, d.Value)
	}
	terms := []string{"", "a", "243", "FIN", "xyz", "0", "masculin"}

	for _, d := range departments {
		for _, s := range terms {
			c := Criteria{Department: d, Search: s}
			visible := Apply(workers, c)

			seen := make(map[string]bool, len(visible))
			for _, w := range visible {
				seen[w.ID] = true
				if d != "" && w.Department != d {
					t.Errorf("%+v: запись %s из отдела %s не должна быть видна", c, w.ID, w.Department)
				}
			}
			for _, w := range workers {
				if c.Matches(w) != seen[w.ID] {
					t.Errorf("%+v: Matches(%s) расходится с Apply", c, w.ID)
				}
			}
			if d == "" && s == "" && len(visible) != len(workers) {
				t.Errorf("пустой фильтр должен вернуть все записи")
			}
		}
	}
}

func TestApply_DoesNotMutate(t *testing.T) {
	workers := sampleWorkers()
	before := ids(workers)
	_ = Apply(workers, Criteria{Department: "Finance"})
	if diff := cmp.Diff(before, ids(workers)); diff != "" {
		t.Errorf("Apply изменил исходный срез:\n%s", diff)
	}
	if !(Criteria{}).IsZero() || (Criteria{Search: "a"}).IsZero() {
		t.Error("IsZero вернул неожиданное значение")
	}
}
