package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSelectsHandlerByFormat(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &slog.JSONHandler{}, New("info", "json").Handler())
	assert.IsType(t, &slog.JSONHandler{}, New("info", " JSON ").Handler())
	assert.IsType(t, &slog.TextHandler{}, New("info", "text").Handler())
	assert.IsType(t, &slog.TextHandler{}, New("info", "").Handler())
}

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" info ":  slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"":        slog.LevelDebug,
	}
	for in, want := range cases {
		assert.Equal(t, want, levelFromString(in), "level %q", in)
	}
}
