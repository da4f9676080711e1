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

func serve(mw echo.MiddlewareFunc, handler echo.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, mw(handler)(c)
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := func(c echo.Context) error {
		seen, _ = c.Get("request_id").(string)
		return okHandler(c)
	}

	rec, err := serve(RequestID(), handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if seen == "" {
		t.Error("request_id not set on context")
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header %q does not match context id %q", rec.Header().Get(RequestIDHeader), seen)
	}
}

func TestRequestID_IncomingPreserved(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-42")

	rec, err := serve(RequestID(), okHandler, req)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "trace-42" {
		t.Errorf("request id = %q, want trace-42", got)
	}
}

func TestLogger_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	if _, err := serve(Logger(logger), okHandler, req); err != nil {
		t.Fatalf("handler: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["method"] != "GET" || entry["path"] != "/api/v1/sessions" {
		t.Errorf("log entry = %v", entry)
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	fail := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "session is fully booked")
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	if _, err := serve(Logger(logger), fail, req); err == nil {
		t.Fatal("expected handler error to propagate")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
}

func TestRecovery_TurnsPanicInto500(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	boom := func(echo.Context) error { panic("nil session") }
	_, err := serve(Recovery(logger), boom, httptest.NewRequest(http.MethodGet, "/", nil))

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("err = %v, want 500 HTTPError", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("panic recovered")) {
		t.Error("panic not logged")
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	logger := zerolog.Nop()
	if _, err := serve(Recovery(logger), okHandler, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("handler: %v", err)
	}
}
