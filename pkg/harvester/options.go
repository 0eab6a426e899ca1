package harvester

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kobomedia/pkg/config"
)

// ErrInvalidAssetUID is returned when no asset was given
var ErrInvalidAssetUID = errors.New("Please provide a valid Asset UID.")

// Options are the inputs of one run, whether they come from CLI flags or
// the dashboard form.
type Options struct {
	AssetUID string `json:"asset_uid"`
	// QuestionNames is the comma-separated list of fields whose answers
	// name the attachments to keep. Empty keeps every attachment.
	QuestionNames      string        `json:"question_names"`
	Limit              int           `json:"limit"`
	Query              string        `json:"query,omitempty"`
	ChunkSize          int           `json:"chunk_size"`
	Throttle           time.Duration `json:"throttle"`
	Verbosity          int           `json:"verbosity"`
	OutputDir          string        `json:"output_dir"`
	RewriteDownloadURL bool          `json:"rewrite_download_url"`
}

// OptionsFromConfig fills Options from the download and output sections
func OptionsFromConfig(cfg *config.Config, assetUID string) Options {
	return Options{
		AssetUID:           strings.TrimSpace(assetUID),
		QuestionNames:      cfg.Download.QuestionNames,
		Limit:              cfg.Download.Limit,
		Query:              cfg.Download.Query,
		ChunkSize:          cfg.Download.ChunkSize,
		Throttle:           cfg.Download.ThrottleDuration(),
		Verbosity:          cfg.Download.Verbosity,
		OutputDir:          cfg.Output.BaseDirectory,
		RewriteDownloadURL: cfg.Kobo.RewriteDownloadURL,
	}
}

// Validate checks the options before a run starts
func (o Options) Validate() error {
	if strings.TrimSpace(o.AssetUID) == "" {
		return ErrInvalidAssetUID
	}

	var errs []error
	if o.Limit < 1 {
		errs = append(errs, fmt.Errorf("limit must be at least 1, got %d", o.Limit))
	}
	if o.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("chunk size must be at least 1, got %d", o.ChunkSize))
	}
	if o.Throttle < 0 {
		errs = append(errs, fmt.Errorf("throttle cannot be negative"))
	}
	if o.Verbosity < 1 || o.Verbosity > 3 {
		errs = append(errs, fmt.Errorf("verbosity must be 1, 2 or 3, got %d", o.Verbosity))
	}
	if o.OutputDir == "" {
		errs = append(errs, fmt.Errorf("output directory cannot be empty"))
	}
	return errors.Join(errs...)
}

// FieldNames splits QuestionNames, trimming entries and dropping empty ones
func (o Options) FieldNames() []string {
	var names []string
	for _, name := range strings.Split(o.QuestionNames, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
