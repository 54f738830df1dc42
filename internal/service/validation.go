// validation.go — проверка форм (сотрудник, учётные данные) через go-playground/validator.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
)

// MinPasswordLength — минимальная длина пароля при регистрации.
const MinPasswordLength = 6

// FormValidator — проверка обязательных полей и форматов.
// Безопасен для конкурентного использования.
type FormValidator struct {
	v *validator.Validate
}

// credentialsForm — форма входа и регистрации.
type credentialsForm struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// NewFormValidator создаёт валидатор с правилами справочников.
func NewFormValidator() *FormValidator {
	v := validator.New()

	// Имена полей в ошибках — как в JSON (nom, telephone, ...)
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	err := registerRules(v, map[string]func(string) bool{
		"department": model.IsDepartment,
		"education":  model.IsEducation,
		"gender":     model.IsGender,
		"isodate": func(s string) bool {
			_, err := model.ParseDate(s)
			return err == nil
		},
	})
	if err != nil {
		panic(fmt.Sprintf("регистрация правил валидации: %v", err))
	}

	return &FormValidator{v: v}
}

// registerRules регистрирует строковые правила под их тегами.
func registerRules(v *validator.Validate, rules map[string]func(string) bool) error {
	for tag, check := range rules {
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		})
		if err != nil {
			return fmt.Errorf("тег %q: %w", tag, err)
		}
	}
	return nil
}

// Worker проверяет форму сотрудника.
// Ошибка — RepositoryError{invalid_input} с перечнем полей.
func (fv *FormValidator) Worker(op apperr.Op, form model.WorkerForm) error {
	err := fv.v.Struct(form)
	if err == nil {
		return nil
	}

	fields := invalidFields(err)
	message := "Veuillez remplir tous les champs obligatoires"
	if len(fields) > 0 {
		message = fmt.Sprintf("Champs invalides: %s", strings.Join(fields, ", "))
	}
	return apperr.NewRepositoryError(op, apperr.RepoInvalidInput, message, err)
}

// Credentials проверяет e-mail и пароль.
// signup=true дополнительно требует пароль не короче MinPasswordLength.
func (fv *FormValidator) Credentials(email, password string, signup bool) error {
	form := credentialsForm{Email: strings.TrimSpace(email), Password: password}
	if err := fv.v.Struct(form); err != nil {
		for _, field := range invalidFields(err) {
			if field == "email" {
				return &apperr.AuthError{
					Code:    apperr.AuthInvalidCredentials,
					Message: "Adresse email invalide",
					Err:     err,
				}
			}
		}
		return apperr.NewAuthError(apperr.AuthInvalidCredentials, err)
	}

	if signup {
		if err := fv.v.Var(password, fmt.Sprintf("min=%d", MinPasswordLength)); err != nil {
			return apperr.NewAuthError(apperr.AuthWeakPassword, err)
		}
	}
	return nil
}

// invalidFields возвращает имена полей, не прошедших проверку, в порядке объявления.
func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
