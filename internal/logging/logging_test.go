package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONCarriesServiceAndEnv(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{Level: "warn", Service: "auth", Env: "production"})

	l.Info("dropped")
	l.Warn("login_failed", "status", 401)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "login_failed", rec["msg"])
	assert.Equal(t, "auth", rec["service"])
	assert.Equal(t, "production", rec["env"])
	assert.Equal(t, float64(401), rec["status"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Options{Level: "debug", Format: "text", Service: "auth"})

	l.Debug("logout_token_ignored", "reason", "malformed")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "service=auth")
	assert.Contains(t, out, "reason=malformed")
	assert.NotContains(t, out, "env=")
}

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
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := NewWithWriter(&bytes.Buffer{}, Options{})
	ctx := IntoContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
