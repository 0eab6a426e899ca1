package harvester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"kobomedia/pkg/archive"
	"kobomedia/pkg/history"
	"kobomedia/pkg/logger"
	"kobomedia/pkg/storage"
)

// ErrArchiveMissing is returned when the run ends without a ZIP on disk
var ErrArchiveMissing = errors.New("ZIP file could not be created.")

// Result is everything a caller needs to report on a finished run
type Result struct {
	RunID        string    `json:"run_id"`
	AssetUID     string    `json:"asset_uid"`
	Stats        Stats     `json:"stats"`
	ArchivePath  string    `json:"archive_path,omitempty"`
	ArchiveFiles int       `json:"archive_files"`
	PublishedURL string    `json:"published_url,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	// WalkErr is set when pagination stopped early; the stats and archive
	// then cover only the pages processed before it.
	WalkErr error `json:"-"`
	// PublishErr is set when the archive could not be uploaded
	PublishErr error `json:"-"`
}

// Status summarizes the run as ok, partial or failed
func (r *Result) Status() string {
	switch {
	case r.ArchivePath == "":
		return "failed"
	case r.WalkErr != nil, r.Stats.Failed > 0, r.PublishErr != nil:
		return "partial"
	default:
		return "ok"
	}
}

// ArchivePath returns where the archive of an asset is written
func (h *Harvester) ArchivePath(assetUID string) string {
	return filepath.Join(h.config.Output.ArchiveDirectory, assetUID+".zip")
}

// Run performs a whole download: lock the asset, walk every page, zip the
// asset directory and optionally publish and record the run. A walk that
// stops early is not an error; the partial result is archived and the
// cause is kept in Result.WalkErr.
func (h *Harvester) Run(ctx context.Context, opts Options, reporter Reporter) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = NopReporter()
	}

	log := h.logger.WithField("asset_uid", opts.AssetUID)
	result := &Result{
		RunID:     uuid.NewString(),
		AssetUID:  opts.AssetUID,
		StartedAt: time.Now(),
	}

	store, err := storage.NewManager(opts.OutputDir, opts.AssetUID)
	if err != nil {
		return nil, err
	}
	if err := store.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Unlock(); err != nil {
			log.WithError(err).Warn("failed to release asset lock")
		}
	}()

	log.InfoWithFields("run started", map[string]interface{}{
		"run_id":         result.RunID,
		"question_names": opts.QuestionNames,
		"limit":          opts.Limit,
		"output_dir":     opts.OutputDir,
	})

	stats, walkErr := h.Walk(ctx, opts, store, reporter)
	result.Stats = *stats
	result.WalkErr = walkErr

	if walkErr != nil && ctx.Err() != nil {
		result.FinishedAt = time.Now()
		h.finish(ctx, log, result)
		return result, walkErr
	}
	if walkErr != nil {
		log.WithError(walkErr).Warn("walk ended early, archiving partial results")
	}

	archivePath := h.ArchivePath(opts.AssetUID)
	archived, err := archive.ZipFolder(store.AssetDir(), archivePath)
	if err == nil {
		if _, statErr := os.Stat(archivePath); statErr != nil {
			err = statErr
		}
	}
	if err != nil {
		log.WithError(err).Error("archive failed")
		result.FinishedAt = time.Now()
		h.finish(ctx, log, result)
		return result, fmt.Errorf("%w: %v", ErrArchiveMissing, err)
	}
	result.ArchivePath = archived.Path
	result.ArchiveFiles = archived.Files

	if h.publisher != nil {
		url, err := h.publisher.Publish(ctx, archived.Path, opts.AssetUID)
		if err != nil {
			log.WithError(err).Warn("archive publish failed")
			result.PublishErr = err
		} else {
			result.PublishedURL = url
		}
	}

	result.FinishedAt = time.Now()
	h.finish(ctx, log, result)
	return result, nil
}

// finish logs the summary, records metrics and writes the history entry
func (h *Harvester) finish(ctx context.Context, log logger.Logger, result *Result) {
	duration := result.FinishedAt.Sub(result.StartedAt)
	status := result.Status()
	h.metrics.ObserveRun(status, duration)

	log.InfoWithFields("run finished", map[string]interface{}{
		"run_id":     result.RunID,
		"status":     status,
		"successful": result.Stats.Successful,
		"failed":     result.Stats.Failed,
		"skipped":    result.Stats.Skipped,
		"pages":      result.Stats.Pages,
		"duration":   duration,
		"archive":    result.ArchivePath,
	})

	if h.history == nil {
		return
	}

	run := history.Run{
		ID:           result.RunID,
		AssetUID:     result.AssetUID,
		Status:       status,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
		Successful:   result.Stats.Successful,
		Failed:       result.Stats.Failed,
		Skipped:      result.Stats.Skipped,
		Pages:        result.Stats.Pages,
		ArchivePath:  result.ArchivePath,
		PublishedURL: result.PublishedURL,
	}
	if err := firstError(result.WalkErr, result.PublishErr); err != nil {
		run.Error = err.Error()
	}

	// recorded even when ctx was cancelled
	if err := h.history.Record(context.WithoutCancel(ctx), run); err != nil {
		log.WarnWithFields("failed to record run history", map[string]interface{}{
			"run_id": result.RunID,
			"error":  err.Error(),
		})
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
