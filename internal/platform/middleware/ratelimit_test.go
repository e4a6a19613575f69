package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/radorder/radorder/internal/platform/auth"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func rateRequest(e *echo.Echo, h echo.HandlerFunc, ip string, userID int64) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	if userID != 0 {
		req = req.WithContext(auth.WithIdentity(req.Context(), userID, 1, nil))
	}
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := rateRequest(e, h, "10.0.0.1", 0)
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := rateRequest(e, h, "10.0.0.1", 0); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := rateRequest(e, h, "10.0.0.1", 0)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_KeysByUserThenIP(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})(okHandler)

	if _, err := rateRequest(e, h, "10.0.0.1", 7); err != nil {
		t.Fatal(err)
	}
	// Same IP, different user: separate bucket.
	if _, err := rateRequest(e, h, "10.0.0.1", 8); err != nil {
		t.Errorf("second user should not share a bucket: %v", err)
	}
	// Anonymous caller from the same IP also gets its own bucket.
	if _, err := rateRequest(e, h, "10.0.0.1", 0); err != nil {
		t.Errorf("anonymous caller should not share a user bucket: %v", err)
	}
	if _, err := rateRequest(e, h, "10.0.0.2", 7); err == nil {
		t.Error("user 7 should be limited regardless of IP")
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.get("a")
	now = now.Add(2 * time.Minute)
	s.get("b")
	if _, ok := s.visitors["a"]; ok {
		t.Error("idle visitor should have been evicted")
	}
	if len(s.visitors) != 1 {
		t.Errorf("expected 1 visitor, got %d", len(s.visitors))
	}
}
