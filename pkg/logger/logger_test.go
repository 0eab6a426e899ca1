package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kobomedia/pkg/config"
)

func newJSONLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: level, Format: "json"}, &buf)
	require.NoError(t, err)
	return l, &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := NewWithWriter(&config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestJSONOutputCarriesFields(t *testing.T) {
	l, buf := newJSONLogger(t, "debug")

	l.WithField("asset_uid", "aXyZ").
		WithFields(map[string]interface{}{"page": 2, "has_next": true}).
		Info("page fetched")

	entry := lastLine(t, buf)
	assert.Equal(t, "page fetched", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "kobomedia", entry["app"])
	assert.Equal(t, "aXyZ", entry["asset_uid"])
	assert.Equal(t, float64(2), entry["page"])
	assert.Equal(t, true, entry["has_next"])
}

func TestChildLoggersDoNotLeakFields(t *testing.T) {
	l, buf := newJSONLogger(t, "debug")

	_ = l.WithField("submission", "one")
	l.Info("parent")

	entry := lastLine(t, buf)
	_, ok := entry["submission"]
	assert.False(t, ok)
}

func TestWithError(t *testing.T) {
	l, buf := newJSONLogger(t, "debug")

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("connection reset")).Error("download failed")
	entry := lastLine(t, buf)
	assert.Equal(t, "connection reset", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newJSONLogger(t, "warn")

	l.Debug("hidden")
	l.Info("hidden too")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Equal(t, "shown", lastLine(t, buf)["message"])
}

func TestFieldTypes(t *testing.T) {
	l, buf := newJSONLogger(t, "debug")

	l.InfoWithFields("typed", map[string]interface{}{
		"duration": 1500 * time.Millisecond,
		"names":    []string{"photo", "audio"},
		"bytes":    int64(2048),
		"cause":    errors.New("boom"),
	})

	entry := lastLine(t, buf)
	assert.Equal(t, []interface{}{"photo", "audio"}, entry["names"])
	assert.Equal(t, float64(2048), entry["bytes"])
	assert.Equal(t, "boom", entry["cause"])
	assert.Contains(t, entry, "duration")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kobomedia.log")
	l, err := NewWithWriter(&config.LoggingConfig{Level: "info", File: path}, &bytes.Buffer{})
	require.NoError(t, err)

	l.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://kf.example.org/api", 503, time.Second)
	LogRequest(tl, "GET", "https://kf.example.org/api", 404, time.Second)
	LogPageFetched(tl, "aXyZ", 1, 3, false)
	LogDownload(tl, "uuid-1", "aXyZ/uuid-1/a.jpg", "failed", errors.New("timeout"))
	LogDownload(tl, "uuid-1", "aXyZ/uuid-1/b.jpg", "skipped", nil)

	assert.True(t, tl.HasError())
	assert.True(t, tl.HasMessage("HTTP request client error"))
	assert.True(t, tl.HasMessage("attachment already on disk"))

	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 2)
	assert.EqualError(t, warns[1].Error, "timeout")
	assert.Equal(t, "uuid-1", warns[1].Fields["submission"])

	pages := tl.GetMessagesByLevel("DEBUG")
	require.NotEmpty(t, pages)
	assert.Equal(t, "aXyZ", pages[0].Fields["asset_uid"])
}

func TestTestLoggerSharesCaptureWithChildren(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("k", "v").Info("from child")
	tl.Info("from parent")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "v", msgs[0].Fields["k"])
	assert.Nil(t, msgs[1].Fields)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	tl := NewTestLogger()
	SetLogger(tl)

	Info("global info")
	WithField("k", "v").Warn("global warn")
	WithError(errors.New("x")).Error("global error")

	assert.True(t, tl.HasMessage("global info"))
	assert.True(t, tl.HasMessage("global warn"))
	assert.True(t, tl.HasError())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("b")).Info("nothing")
	assert.Nil(t, l.GetZerolog())
}
