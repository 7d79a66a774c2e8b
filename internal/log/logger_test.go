package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerJSONCarriesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentTransaction, Handler: NewHandler(&buf, "json", slog.LevelInfo)})

	fields := NewFields().WithUser("u1").WithOperation(OpCreate)
	logger.InfoContext(context.Background(), "saved", fields.ToSlice()...)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentTransaction || rec[FieldUserID] != "u1" || rec[FieldOperation] != OpCreate {
		t.Fatalf("record = %v", rec)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: "test", Handler: NewHandler(&buf, "text", slog.LevelDebug)})
	ctx := WithContext(context.Background(), logger)

	FromContext(ctx).Debug("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected context logger to be used, got %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without logger returned nil")
	}
}

func TestComponentMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentApp, Handler: NewHandler(&buf, "json", slog.LevelInfo)})

	h := Middleware(logger)(ComponentMiddleware(ComponentHTTP)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		l := FromContext(r.Context())
		if l.Component() != ComponentHTTP {
			t.Errorf("Component() = %q", l.Component())
		}
		l.InfoContext(r.Context(), "handled")
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentHTTP {
		t.Errorf("component = %v, want %s", rec[FieldComponent], ComponentHTTP)
	}
}
