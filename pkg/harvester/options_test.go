package harvester

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kobomedia/pkg/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Download.Throttle = 0.5
	cfg.Output.BaseDirectory = "/data"

	opts := OptionsFromConfig(cfg, " aXyz ")

	assert.Equal(t, "aXyz", opts.AssetUID)
	assert.Equal(t, "photo,audio", opts.QuestionNames)
	assert.Equal(t, 100, opts.Limit)
	assert.Equal(t, 1024, opts.ChunkSize)
	assert.Equal(t, 500*time.Millisecond, opts.Throttle)
	assert.Equal(t, 3, opts.Verbosity)
	assert.Equal(t, "/data", opts.OutputDir)
	assert.True(t, opts.RewriteDownloadURL)
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidate(t *testing.T) {
	valid := OptionsFromConfig(config.DefaultConfig(), "aXyz")

	t.Run("missing asset", func(t *testing.T) {
		opts := valid
		opts.AssetUID = "   "
		assert.True(t, errors.Is(opts.Validate(), ErrInvalidAssetUID))
	})

	t.Run("collects every problem", func(t *testing.T) {
		opts := valid
		opts.Limit = 0
		opts.ChunkSize = -1
		opts.Verbosity = 4
		opts.OutputDir = ""

		err := opts.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit must be at least 1")
		assert.Contains(t, err.Error(), "chunk size must be at least 1")
		assert.Contains(t, err.Error(), "verbosity must be 1, 2 or 3")
		assert.Contains(t, err.Error(), "output directory cannot be empty")
	})
}

func TestFieldNames(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"photo,audio", []string{"photo", "audio"}},
		{" photo , audio ,", []string{"photo", "audio"}},
		{"", nil},
		{" , ", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Options{QuestionNames: tt.in}.FieldNames(), tt.in)
	}
}

func TestEventMessage(t *testing.T) {
	tests := []struct {
		ev    Event
		want  string
		level int
	}{
		{Event{Kind: EventPage, Page: 2, Results: 30}, "Page 2: 30 submissions", 2},
		{Event{Kind: EventSuccess, Path: "a/b.jpg"}, "Success: a/b.jpg", 3},
		{Event{Kind: EventFailed, Path: "a/b.jpg"}, "Fail: a/b.jpg", 3},
		{Event{Kind: EventSkipped, Path: "a/b.jpg"}, "File already exists, skipping: a/b.jpg", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ev.Message())
		assert.Equal(t, tt.level, tt.ev.Level())
	}
}

func TestResultStatus(t *testing.T) {
	assert.Equal(t, "failed", (&Result{}).Status())
	assert.Equal(t, "ok", (&Result{ArchivePath: "x.zip"}).Status())
	assert.Equal(t, "partial", (&Result{ArchivePath: "x.zip", Stats: Stats{Failed: 1}}).Status())
	assert.Equal(t, "partial", (&Result{ArchivePath: "x.zip", WalkErr: errors.New("stop")}).Status())
}
