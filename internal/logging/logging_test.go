package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hidden")
	l.Warn("shown", "kind", "gyroscope")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"kind":"gyroscope"`) {
		t.Fatalf("expected JSON attrs, got %s", out)
	}
}

func TestNewRejectsUnknown(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected format error")
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard()
	ctx := NewContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("logger not recovered from context")
	}
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
}
