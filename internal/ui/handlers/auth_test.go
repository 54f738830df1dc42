package handlers

import (
	"net/http"
	"net/url"
	"testing"
)

func TestGuard_RedirectsWithoutSession(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	for _, path := range []string{"/", "/home", "/add-worker", "/worker-list"} {
		resp, _ := h.get(t, c, path)
		if resp.StatusCode != http.StatusFound {
			t.Errorf("%s: статус %d, ожидался 302", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/auth" {
			t.Errorf("%s: Location %q, ожидался /auth", path, loc)
		}
	}
}

func TestAuth_LoginFailureKeepsEmail(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp, body := h.post(t, c, "/auth", url.Values{
		"mode": {"login"}, "email": {"amani@example.com"}, "password": {"wrong-password"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("статус %d", resp.StatusCode)
	}
	assertContains(t, body, "Erreur: Email ou mot de passe incorrect", `value="amani@example.com"`)

	// Сессия не создана
	resp, _ = h.get(t, c, "/home")
	if resp.StatusCode != http.StatusFound {
		t.Errorf("/home после неудачного входа: статус %d", resp.StatusCode)
	}
}

func TestAuth_LoginHomeLogout(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	h.login(t, c)

	resp, body := h.get(t, c, "/home")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/home: статус %d", resp.StatusCode)
	}
	assertContains(t, body, "Bienvenue, amani !", `action="/logout"`, `href="/add-worker"`, `href="/worker-list"`)

	resp, _ = h.post(t, c, "/logout", nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/auth" {
		t.Fatalf("выход: статус %d, Location %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, _ = h.get(t, c, "/home")
	if resp.StatusCode != http.StatusFound {
		t.Errorf("/home после выхода: статус %d, ожидался 302", resp.StatusCode)
	}
}

func TestAuth_SignUp(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     []string
	}{
		{
			name:     "успех переключает на вход",
			email:    "new@example.com",
			password: testPassword,
			want:     []string{"Inscription réussie ! Vous pouvez maintenant vous connecter.", `name="mode" value="login"`},
		},
		{
			name:     "e-mail занят",
			email:    "taken@example.com",
			password: testPassword,
			want:     []string{"Erreur: Un utilisateur avec cet email existe déjà.", `name="mode" value="signup"`},
		},
		{
			name:     "короткий пароль",
			email:    "new@example.com",
			password: "abc",
			want:     []string{"Erreur: Le mot de passe doit contenir au moins 6 caractères"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c := h.client(t)

			resp, body := h.post(t, c, "/auth", url.Values{
				"mode": {"signup"}, "email": {tt.email}, "password": {tt.password},
			})
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("статус %d", resp.StatusCode)
			}
			assertContains(t, body, tt.want...)
		})
	}
}

func TestAuth_SignUpSuccessClearsForm(t *testing.T) {
	h := newHarness(t)
	_, body := h.post(t, h.client(t), "/auth", url.Values{
		"mode": {"signup"}, "email": {"new@example.com"}, "password": {testPassword},
	})
	assertNotContains(t, body, `value="new@example.com"`)
}

func TestAuthPage_ModeFromQuery(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	_, body := h.get(t, c, "/auth?mode=signup")
	assertContains(t, body, `name="mode" value="signup"`, `href="/auth"`)

	_, body = h.get(t, c, "/auth")
	assertContains(t, body, "Connexion", `name="mode" value="login"`, `href="/auth?mode=signup"`)
}

func TestSetLanguage(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/set-language", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.URL.RawQuery = url.Values{"lang": {"en"}}.Encode()
	req.Header.Set("Referer", h.srv.URL+"/auth?mode=signup")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, resp)

	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/auth?mode=signup" {
		t.Fatalf("статус %d, Location %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	_, body := h.get(t, c, "/auth")
	assertContains(t, body, "Sign in", `<html lang="en">`)
}
