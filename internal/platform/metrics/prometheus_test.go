package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/v1/orders/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/api/v1/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	})

	ok := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/orders/:id", "204")
	conflict := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/boom", "409")
	beforeOK, beforeConflict := testutil.ToFloat64(ok), testutil.ToFloat64(conflict)

	for _, path := range []string{"/api/v1/orders/1", "/api/v1/orders/2", "/api/v1/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(ok) - beforeOK; got != 2 {
		t.Errorf("expected 2 requests on the order route, got %v", got)
	}
	if got := testutil.ToFloat64(conflict) - beforeConflict; got != 1 {
		t.Errorf("expected the HTTPError code to be recorded, got %v", got)
	}
}

func TestRecordProviderCall(t *testing.T) {
	success := providerCallsTotal.WithLabelValues("test-provider", "success")
	failure := providerCallsTotal.WithLabelValues("test-provider", "failure")
	beforeS, beforeF := testutil.ToFloat64(success), testutil.ToFloat64(failure)

	RecordProviderCall("test-provider", true, 120*time.Millisecond)
	RecordProviderCall("test-provider", false, time.Second)
	RecordProviderCall("test-provider", false, time.Second)

	if got := testutil.ToFloat64(success) - beforeS; got != 1 {
		t.Errorf("success: expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(failure) - beforeF; got != 2 {
		t.Errorf("failure: expected 2, got %v", got)
	}
}

func TestWorkflowCounters(t *testing.T) {
	unavailable := testutil.ToFloat64(validationUnavailableTotal)
	RecordValidationUnavailable()
	if got := testutil.ToFloat64(validationUnavailableTotal) - unavailable; got != 1 {
		t.Errorf("unavailable: expected 1, got %v", got)
	}

	transition := orderTransitionsTotal.WithLabelValues("pending_validation", "validated")
	before := testutil.ToFloat64(transition)
	RecordStatusTransition("pending_validation", "validated")
	if got := testutil.ToFloat64(transition) - before; got != 1 {
		t.Errorf("transition: expected 1, got %v", got)
	}

	finalized := ordersFinalizedTotal.WithLabelValues("override")
	before = testutil.ToFloat64(finalized)
	RecordOrderFinalized("override")
	if got := testutil.ToFloat64(finalized) - before; got != 1 {
		t.Errorf("finalized: expected 1, got %v", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordValidationAttempt("appropriate")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "order_validation_attempts_total") {
		t.Error("expected attempt counter in exposition output")
	}
}
