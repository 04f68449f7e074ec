package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestBuild_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, zerolog.InfoLevel, false)

	l.Debug().Msg("hidden")
	l.Info().Msg("playback: state changed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "playback: state changed", entry["message"])
	assert.NotContains(t, entry, "caller")
}

func TestBuild_DebugAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, zerolog.DebugLevel, false)

	l.Debug().Msg("with caller")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["caller"], "logger/logger_test.go")
}

func TestInit_File(t *testing.T) {
	prev := zlog.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zlog.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "player.log")
	require.NoError(t, Init(Config{Output: path, File: path, Level: "info"}))

	zlog.Info().Msg("written to file")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"written to file"`)
}

func TestInit_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "player.log")
	assert.Error(t, Init(Config{Output: path, File: path}))
}
