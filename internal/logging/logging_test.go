package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNew_JSONWithRunAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := ForRun(New(&buf, "info", "json"), "run-1", "user-1")

	l.Debug("hidden")
	l.Info("stage finished", slog.String("stage", "ad-copy"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "stage finished", rec["msg"])
	assert.Equal(t, "run-1", rec["run_id"])
	assert.Equal(t, "user-1", rec["user_id"])
	assert.Equal(t, "ad-copy", rec["stage"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestOr(t *testing.T) {
	assert.Same(t, slog.Default(), Or(nil))
	l := Discard()
	assert.Same(t, l, Or(l))
}

func TestContext(t *testing.T) {
	l := Discard()
	ctx := NewContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx, nil))

	fallback := Discard()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.Same(t, slog.Default(), FromContext(context.Background(), nil))
}
