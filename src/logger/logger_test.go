package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"warn", LevelWarning},
		{"WARNING", LevelWarning},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "WARNING", "test")

	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	l.Warning("shown %d", 3)
	l.Error("shown %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[test] WARNING: shown 3")
	assert.Contains(t, out, "[test] ERROR: shown 4")
}

func TestLogger_NamedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "ERROR", "root").Named("child")

	l.Info("dropped")
	l.Error("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "[child] ERROR: kept")
}

func TestLogger_CriticalExits(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "INFO", "svc")
	code := -1
	l.exit = func(c int) { code = c }

	l.Critical("boom: %s", "login")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "[svc] CRITICAL: boom: login")
}
