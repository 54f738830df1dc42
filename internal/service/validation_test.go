package service

import (
	"strings"
	"testing"

	"github.com/go-playground/validator"

	"github.com/bigkaa/workerreg/internal/domain/apperr"
	"github.com/bigkaa/workerreg/internal/domain/model"
)

func TestFormValidator_Worker(t *testing.T) {
	fv := NewFormValidator()

	tests := []struct {
		name    string
		mutate  func(f *model.WorkerForm)
		wantErr string
	}{
		{name: "валидная форма", mutate: func(*model.WorkerForm) {}},
		{name: "пустой nom", mutate: func(f *model.WorkerForm) { f.FamilyName = "" }, wantErr: "nom"},
		{name: "пустой телефон", mutate: func(f *model.WorkerForm) { f.Phone = "" }, wantErr: "telephone"},
		{name: "неизвестный отдел", mutate: func(f *model.WorkerForm) { f.Department = "Cuisine" }, wantErr: "departement"},
		{name: "неизвестный уровень", mutate: func(f *model.WorkerForm) { f.Education = "Bac+5" }, wantErr: "niveau_etudes"},
		{name: "неизвестный пол", mutate: func(f *model.WorkerForm) { f.Gender = "M" }, wantErr: "sexe"},
		{name: "дата не ISO", mutate: func(f *model.WorkerForm) { f.JoinDate = "2024-13-01" }, wantErr: "date_adhesion"},
		{name: "слишком длинное имя", mutate: func(f *model.WorkerForm) { f.GivenName = strings.Repeat("é", 101) }, wantErr: "prenom"},
		{name: "Féminin и Assistant(e)", mutate: func(f *model.WorkerForm) {
			f.Gender = model.GenderFemale
			f.Department = "Assistant(e)"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm("Mbuyi", "Finance")
			tt.mutate(&form)

			err := fv.Worker(apperr.OpInsert, form)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("неожиданная ошибка: %v", err)
				}
				return
			}
			re, ok := apperr.AsRepository(err)
			if !ok || re.Code != apperr.RepoInvalidInput {
				t.Fatalf("ожидалась invalid_input, получено %v", err)
			}
			if !strings.Contains(re.Message, tt.wantErr) {
				t.Errorf("Message = %q, ожидалось упоминание %q", re.Message, tt.wantErr)
			}
		})
	}
}

func TestFormValidator_Credentials(t *testing.T) {
	fv := NewFormValidator()

	tests := []struct {
		name     string
		email    string
		password string
		signup   bool
		wantCode apperr.AuthCode
	}{
		{name: "вход", email: "amani@example.com", password: "x"},
		{name: "регистрация", email: "amani@example.com", password: "secret", signup: true},
		{name: "короткий пароль при регистрации", email: "amani@example.com", password: "12345", signup: true, wantCode: apperr.AuthWeakPassword},
		{name: "пароль из 6 символов юникода", email: "amani@example.com", password: "éééééé", signup: true},
		{name: "некорректный email", email: "amani", password: "secret", wantCode: apperr.AuthInvalidCredentials},
		{name: "пустой пароль", email: "amani@example.com", password: "", wantCode: apperr.AuthInvalidCredentials},
		{name: "пробелы вокруг email", email: "  amani@example.com ", password: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fv.Credentials(tt.email, tt.password, tt.signup)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("неожиданная ошибка: %v", err)
				}
				return
			}
			ae, ok := apperr.AsAuth(err)
			if !ok || ae.Code != tt.wantCode {
				t.Fatalf("ожидался код %s, получено %v", tt.wantCode, err)
			}
		})
	}
}

func TestRegisterRules(t *testing.T) {
	always := func(string) bool { return true }

	if err := registerRules(validator.New(), map[string]func(string) bool{"department": always}); err != nil {
		t.Fatalf("корректный тег: %v", err)
	}

	err := registerRules(validator.New(), map[string]func(string) bool{"": always})
	if err == nil {
		t.Fatal("пустой тег должен давать ошибку")
	}
	if !strings.Contains(err.Error(), `тег ""`) {
		t.Errorf("ошибка без имени тега: %v", err)
	}
}

func TestNewFormValidator_RulesRegistered(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("NewFormValidator паникует: %v", r)
		}
	}()

	fv := NewFormValidator()
	form := model.WorkerForm{
		FamilyName: "Mbuyi", PostName: "Kabongo", GivenName: "Jean", Phone: "+243 81 234 5678",
		Department: "Cuisine", Education: "G3", Gender: model.GenderMale, JoinDate: "2024-01-15",
	}
	err := fv.Worker(apperr.OpInsert, form)
	if err == nil || !strings.Contains(err.Error(), "departement") {
		t.Errorf("правило department не применено: %v", err)
	}
}
