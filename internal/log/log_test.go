package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q): want %v, got %v", in, want, got)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentExpense, Output: &buf})
	l.InfoContext(context.Background(), "Expense created", FieldExpenseID, "e1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentExpense || rec[FieldExpenseID] != "e1" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Format: "json", Output: &buf})
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be dropped at warn level, got %q", buf.String())
	}
	l.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn must be written")
	}
}

func TestLogHTTPEnd(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		base := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
		ctx := WithLogger(context.Background(), base.With(FieldRequestID, "req_1"))
		r := httptest.NewRequest(http.MethodGet, "/api/expenses?q=gas", nil)

		LogHTTPEnd(ctx, r, tc.status, 12, "10.0.0.1")

		var rec map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("decode record %q: %v", buf.String(), err)
		}
		if rec["level"] != tc.level || rec[FieldRequestID] != "req_1" || rec[FieldComponent] != ComponentHTTP {
			t.Errorf("status %d: unexpected record %v", tc.status, rec)
		}
		if rec[FieldQuery] != "q=gas" || rec[FieldClientIP] != "10.0.0.1" || rec[FieldSuccess] != (tc.status < 400) {
			t.Errorf("status %d: request fields missing: %v", tc.status, rec)
		}
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("FromContext must never return nil")
	}
}
