package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func gateTestServer(secret string) *echo.Echo {
	e := echo.New()
	g := e.Group("/:secret", SecretGate(secret))
	g.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	return e
}

func TestSecretGate(t *testing.T) {
	e := gateTestServer("correct-horse")

	tests := []struct {
		name string
		path string
		want int
	}{
		{"correct_secret", "/correct-horse/ping", http.StatusOK},
		{"wrong_secret", "/battery-staple/ping", http.StatusNotFound},
		{"prefix_of_secret", "/correct/ping", http.StatusNotFound},
		{"secret_with_suffix", "/correct-horse1/ping", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestSecretGateMismatchRevealsNothing(t *testing.T) {
	e := gateTestServer("correct-horse")

	req := httptest.NewRequest(http.MethodGet, "/battery-staple/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := rec.Body.String(); body == "pong" {
		t.Fatalf("gated handler ran for wrong secret")
	}
}
