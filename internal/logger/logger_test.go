package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.NotEmpty(t, cfg.TimeFormat)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
		wantErr  bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	assert.Error(t, err)
	_, _, err = New(Config{Format: "xml"})
	assert.Error(t, err)
	_, _, err = New(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "log.txt")})
	assert.Error(t, err)
}

func TestJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workbox.log")
	logger, closeLog, err := New(Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("lid interferes with base", zap.Float64("volume_mm3", 1.5))
	require.NoError(t, logger.Sync())
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "lid interferes with base", entry["msg"])
	assert.Equal(t, 1.5, entry["volume_mm3"])
	assert.Contains(t, entry, "time")
}

func TestConsoleStderr(t *testing.T) {
	logger, closeLog, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closeLog())
}
