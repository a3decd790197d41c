package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func captureLogger() (zerolog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return zerolog.New(&buf), &buf
}

func logFields(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var fields map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("parse log line %q: %v", buf.String(), err)
	}
	return fields
}

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid == "" {
			t.Error("request_id was not set on the context")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response missing X-Request-ID header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts", nil)
	req.Header.Set(RequestIDHeader, "upstream-trace-42")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid != "upstream-trace-42" {
			t.Errorf("request_id = %q, want upstream-trace-42", rid)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "upstream-trace-42" {
		t.Errorf("response header = %q, want upstream-trace-42", got)
	}
}

func TestLogger_RecordsRequestFields(t *testing.T) {
	logger, buf := captureLogger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dose-logs", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-7")
	c.Set("jwt_tenant_id", "sunrise_care")

	h := Logger(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}

	fields := logFields(t, buf)
	if fields["method"] != "POST" {
		t.Errorf("method = %v, want POST", fields["method"])
	}
	if fields["path"] != "/api/v1/dose-logs" {
		t.Errorf("path = %v, want /api/v1/dose-logs", fields["path"])
	}
	if fields["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want 201", fields["status"])
	}
	if fields["tenant"] != "sunrise_care" {
		t.Errorf("tenant = %v, want sunrise_care", fields["tenant"])
	}
	if fields["request_id"] != "req-7" {
		t.Errorf("request_id = %v, want req-7", fields["request_id"])
	}
}

func TestLogger_OmitsUnresolvedTenant(t *testing.T) {
	logger, buf := captureLogger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Logger(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}

	fields := logFields(t, buf)
	if _, ok := fields["tenant"]; ok {
		t.Errorf("tenant field present on untenanted request: %v", fields["tenant"])
	}
}

func TestLogger_LogsErrorLevel(t *testing.T) {
	logger, buf := captureLogger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/elders", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "elder not found")
	})
	if err := h(c); err == nil {
		t.Fatal("handler error was swallowed")
	}

	fields := logFields(t, buf)
	if fields["level"] != "error" {
		t.Errorf("level = %v, want error", fields["level"])
	}
	if _, ok := fields["error"]; !ok {
		t.Error("error field missing from log line")
	}
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	logger, buf := captureLogger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-9")

	h := Recovery(logger)(func(c echo.Context) error {
		panic("nil candidate list")
	})

	err := h(c)
	if err == nil {
		t.Fatal("recovered panic did not produce an error")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("error type = %T, want *echo.HTTPError", err)
	}
	if he.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", he.Code)
	}

	fields := logFields(t, buf)
	if fields["panic"] != "nil candidate list" {
		t.Errorf("panic field = %v, want the panic value", fields["panic"])
	}
	if fields["request_id"] != "req-9" {
		t.Errorf("request_id = %v, want req-9", fields["request_id"])
	}
	if _, ok := fields["stack"]; !ok {
		t.Error("stack missing from panic log")
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	logger, _ := captureLogger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Recovery(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
