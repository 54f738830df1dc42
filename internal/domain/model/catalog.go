package model

// Значения пола.
const (
	GenderMale   = "Masculin"
	GenderFemale = "Féminin"
	GenderOther  = "Autre"
)

// DefaultColor — цвет для значений вне справочников.
const DefaultColor = "#6b7280"

// Option — значение справочника с цветом бейджа.
type Option struct {
	Value string
	Color string
}

// Departments — закрытый набор отделов в порядке отображения.
var Departments = []Option{
	{"Ressources Humaines", "#3b82f6"},
	{"Informatique", "#8b5cf6"},
	{"Finance", "#10b981"},
	{"Marketing", "#f59e0b"},
	{"Protocole", "#ef4444"},
	{"Logistique", "#06b6d4"},
	{"Gestion de stock", "#8b5cf6"},
	{"Restauration", "#f59e0b"},
	{"Formateur", "#10b981"},
	{"Secretaire", "#3b82f6"},
	{"Juridique", "#ef4444"},
	{"Assistant(e)", "#06b6d4"},
	{"Nettoyage", "#6b7280"},
}

// EducationLevels — закрытый набор уровней образования.
var EducationLevels = []Option{
	{"Secondaire", "#6b7280"},
	{"D6", "#3b82f6"},
	{"G3", "#10b981"},
	{"L2", "#8b5cf6"},
	{"Master", "#f59e0b"},
	{"Doctorat", "#ef4444"},
	{"Autre", "#06b6d4"},
}

// Genders — закрытый набор значений пола.
var Genders = []Option{
	{GenderMale, "#3b82f6"},
	{GenderFemale, "#ec4899"},
	{GenderOther, "#6b7280"},
}

// IsDepartment сообщает, входит ли значение в справочник отделов.
func IsDepartment(v string) bool { return contains(Departments, v) }

// IsEducation сообщает, входит ли значение в справочник уровней образования.
func IsEducation(v string) bool { return contains(EducationLevels, v) }

// IsGender сообщает, входит ли значение в справочник пола.
func IsGender(v string) bool { return contains(Genders, v) }

// DepartmentColor возвращает цвет бейджа отдела.
func DepartmentColor(v string) string { return colorOf(Departments, v) }

// EducationColor возвращает цвет бейджа уровня образования.
func EducationColor(v string) string { return colorOf(EducationLevels, v) }

// GenderColor возвращает цвет бейджа пола.
func GenderColor(v string) string { return colorOf(Genders, v) }

func contains(opts []Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}

func colorOf(opts []Option, v string) string {
	for _, o := range opts {
		if o.Value == v {
			return o.Color
		}
	}
	return DefaultColor
}
