package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*DispatcherLogger)
		level string
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("handling command", "keyword", "APS", "params", 4) }, "DEBUG"},
		{"info", func(l *DispatcherLogger) { l.Info("handling command", "keyword", "APS", "params", 4) }, "INFO"},
		{"error", func(l *DispatcherLogger) { l.Error("handling command", "keyword", "APS", "params", 4) }, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			tt.log(NewDispatcherLogger(logger))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "handling command", entry["msg"])
			assert.Equal(t, "APS", entry["keyword"])
			assert.Equal(t, float64(4), entry["params"])
		})
	}
}

func TestDispatcherLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	dl := NewDispatcherLogger(logger)

	dl.Debug("hidden")
	assert.Empty(t, buf.String())

	dl.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
