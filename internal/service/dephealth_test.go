// dephealth_test.go — unit-тесты построения пути health endpoint BaaS.
package service

import (
	"testing"
)

// TestHealthPath проверяет склейку пути базового URL и health endpoint.
func TestHealthPath(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		endpoint string
		expected string
	}{
		{
			name:     "URL без пути",
			baseURL:  "https://abc.supabase.co",
			endpoint: "/auth/v1/health",
			expected: "/auth/v1/health",
		},
		{
			name:     "URL с корневым путём",
			baseURL:  "http://kong:8000/",
			endpoint: "/auth/v1/health",
			expected: "/auth/v1/health",
		},
		{
			name:     "URL с префиксом",
			baseURL:  "https://gateway.example.com/baas",
			endpoint: "/auth/v1/health",
			expected: "/baas/auth/v1/health",
		},
		{
			name:     "endpoint без ведущего слэша",
			baseURL:  "http://localhost:54321",
			endpoint: "auth/v1/health",
			expected: "/auth/v1/health",
		},
		{
			name:     "пустой endpoint — /health",
			baseURL:  "http://localhost:54321",
			endpoint: "",
			expected: "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := healthPath(tt.baseURL, tt.endpoint)
			if result != tt.expected {
				t.Errorf("healthPath(%q, %q) = %q, ожидалось %q", tt.baseURL, tt.endpoint, result, tt.expected)
			}
		})
	}
}
