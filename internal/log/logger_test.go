package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentSession, Output: &buf})

	l.Info("opened", FieldUserID, "u1")
	l.WithComponent(ComponentReceipt).Debug("analysed")

	out := buf.String()
	if !strings.Contains(out, "component=session") || !strings.Contains(out, "user_id=u1") {
		t.Fatalf("missing attributes: %s", out)
	}
	if !strings.Contains(out, "component=receipt") {
		t.Fatalf("WithComponent not applied: %s", out)
	}
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	got := NewFields().WithUser("u").WithError(errors.New("boom")).WithError(nil).ToSlice()
	if len(got) != 4 || got[0] != FieldError || got[2] != FieldUserID {
		t.Fatalf("unexpected slice %v", got)
	}
	if len(NewFields().WithUser("").ToSlice()) != 0 {
		t.Fatal("empty user should be skipped")
	}
}

func TestMiddlewareCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Output: &buf})

	h := Middleware(base, func(*http.Request) string { return "req-1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req-1") || !strings.Contains(buf.String(), "component=http") {
		t.Fatalf("unexpected output: %s", buf.String())
	}

	if FromContext(context.Background()).Component() != ComponentApp {
		t.Fatal("fallback logger should use the app component")
	}
}
