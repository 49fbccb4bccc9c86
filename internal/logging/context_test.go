package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  slog.LevelInfo,
		Format: FormatText,
		Output: &buf,
	})

	ctx := NewContext(context.Background(), logger)
	got := FromContext(ctx)

	got.Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("FromContext did not return the stored logger, output: %q", buf.String())
	}
}

func TestFromContext_MissingLoggerReturnsDefault(t *testing.T) {
	got := FromContext(context.Background())
	if got == nil {
		t.Fatal("expected non-nil logger from empty context")
	}
}
