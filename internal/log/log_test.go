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
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
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

func TestLogger_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentBudget, Output: &buf})

	l.InfoContext(context.Background(), "hello", FieldUserID, "u1")
	out := buf.String()
	if !strings.Contains(out, `"component":"budget"`) || !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("unexpected record %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentCache).Debug("swept")
	if !strings.Contains(buf.String(), `"component":"cache"`) {
		t.Fatalf("component not switched: %s", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Fatalf("Component = %q", l.Component())
	}
}

func TestWithLogger_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf}).With(FieldRequestID, "req_1")

	ctx := WithLogger(context.Background(), base)
	FromContext(ctx).Info("inside")

	if !strings.Contains(buf.String(), `"request_id":"req_1"`) {
		t.Fatalf("request id missing: %s", buf.String())
	}
}

func TestStructuredLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
		sl.LogHTTPEnd(context.Background(), httptest.NewRequest(http.MethodGet, "/api/budget", nil), tt.status, 3, "127.0.0.1")
		if !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
			t.Errorf("status %d logged as %s", tt.status, buf.String())
		}
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithError(nil).WithUser("").WithPeriod(2024, 1)
	if _, ok := f[FieldError]; ok {
		t.Error("nil error should not add a field")
	}
	if _, ok := f[FieldUserID]; ok {
		t.Error("empty user should not add a field")
	}
	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" || f[FieldYear] != 2024 {
		t.Errorf("unexpected fields %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice length mismatch")
	}
}
