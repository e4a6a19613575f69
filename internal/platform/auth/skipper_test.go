package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	e := echo.New()
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/metrics", true},
		{"/api/v1/orders/:id", false},
		{"/api/v1/orders/validate", false},
	}
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetPath(tt.path)
		if got := AuthSkipper(c); got != tt.want {
			t.Errorf("AuthSkipper(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
