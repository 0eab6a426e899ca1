package harvester

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"kobomedia/pkg/config"
	"kobomedia/pkg/kobo"
	"kobomedia/pkg/logger"
	"kobomedia/pkg/ratelimit"
	"kobomedia/pkg/storage"
)

// Harvester walks an asset's submissions and downloads their attachments
type Harvester struct {
	client    KoboClient
	config    *config.Config
	logger    logger.Logger
	metrics   MetricsRecorder
	publisher Publisher
	history   RunRecorder
}

// New creates a Harvester. cfg supplies the API hosts and the archive
// directory; per-run inputs come in through Options.
func New(client KoboClient, cfg *config.Config, log logger.Logger) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Harvester{
		client:  client,
		config:  cfg,
		logger:  log,
		metrics: nopMetrics{},
	}
}

// SetMetrics attaches a metrics recorder
func (h *Harvester) SetMetrics(m MetricsRecorder) {
	if m == nil {
		m = nopMetrics{}
	}
	h.metrics = m
}

// SetPublisher attaches an archive publisher
func (h *Harvester) SetPublisher(p Publisher) {
	h.publisher = p
}

// SetHistory attaches a run recorder
func (h *Harvester) SetHistory(r RunRecorder) {
	h.history = r
}

// Walk requests the data listing page by page and processes every
// submission. It stops when a page has no next link or no results. A page
// that cannot be fetched ends the walk; the stats gathered so far are
// returned along with the error.
func (h *Harvester) Walk(ctx context.Context, opts Options, store *storage.Manager, reporter Reporter) (*Stats, error) {
	reporter = filterReporter(reporter, opts.Verbosity)
	limiter := ratelimit.NewThrottle(opts.Throttle)
	params := kobo.DataParams(opts.Limit, opts.Query)
	pageURL := kobo.FirstPageURL(h.config.Kobo.KFURL, opts.AssetUID, opts.Limit, opts.Query)

	stats := &Stats{}
	defer func() {
		waits, waited := limiter.Stats()
		h.logger.InfoWithFields("walk finished", map[string]interface{}{
			"asset_uid":      opts.AssetUID,
			"pages":          stats.Pages,
			"submissions":    stats.Submissions,
			"throttle_waits": waits,
			"throttle_time":  waited.String(),
		})
	}()
	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := h.client.FetchPage(ctx, pageURL)
		if err != nil {
			h.logger.WithError(err).WithFields(map[string]interface{}{
				"asset_uid": opts.AssetUID,
				"page":      stats.Pages + 1,
			}).Warn("stopping walk, page could not be fetched")
			return stats, fmt.Errorf("failed to fetch page %d: %w", stats.Pages+1, err)
		}

		stats.Pages++
		h.metrics.RecordPage()
		logger.LogPageFetched(h.logger, opts.AssetUID, stats.Pages, len(page.Results), page.HasNext())
		reporter.Report(Event{Kind: EventPage, Page: stats.Pages, Results: len(page.Results)})

		if len(page.Results) == 0 {
			break
		}

		for i := range page.Results {
			if err := h.processSubmission(ctx, opts, store, &page.Results[i], stats, limiter, reporter); err != nil {
				return stats, err
			}
		}

		next := page.NextURL()
		if next == "" {
			break
		}
		if pageURL, err = kobo.WithParams(next, params); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// requestedFilenames collects the sanitized answers of the given fields
func requestedFilenames(sub *kobo.Submission, fields []string) map[string]bool {
	wanted := make(map[string]bool, len(fields))
	for _, field := range fields {
		if v, ok := sub.Field(field); ok {
			wanted[storage.ValidFilename(v)] = true
		}
	}
	return wanted
}

// processSubmission downloads the attachments of one submission. Only
// cancellation is returned as an error; every per-file problem is counted
// in stats.
func (h *Harvester) processSubmission(ctx context.Context, opts Options, store *storage.Manager,
	sub *kobo.Submission, stats *Stats, limiter ratelimit.Limiter, reporter Reporter) error {
	stats.Submissions++

	if len(sub.Attachments) == 0 {
		return nil
	}

	fields := opts.FieldNames()
	wanted := requestedFilenames(sub, fields)

	dir, err := store.EnsureSubmissionDir(sub.UUID)
	if err != nil {
		h.logger.WithError(err).WithField("submission", sub.UUID).Warn("skipping submission")
		return nil
	}

	for _, att := range sub.Attachments {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := kobo.BaseName(att.Filename)
		if len(fields) > 0 && !wanted[name] {
			continue
		}

		path := filepath.Join(dir, name)
		if name == "" || name == "." || name == ".." || strings.Contains(name, `\`) {
			err := fmt.Errorf("attachment %q has no usable file name", att.Filename)
			h.record(sub.UUID, Event{Kind: EventFailed, Path: path, Err: err}, stats, reporter)
			continue
		}

		if store.Exists(path) {
			h.record(sub.UUID, Event{Kind: EventSkipped, Path: path}, stats, reporter)
			continue
		}

		downloadURL := att.Filename
		if opts.RewriteDownloadURL {
			downloadURL = kobo.MediaURL(h.config.Kobo.KCURL, att.Filename)
		}

		start := time.Now()
		var written int64
		err := store.Save(path, func(w io.Writer) error {
			var err error
			written, err = h.client.Download(ctx, downloadURL, w, opts.ChunkSize)
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			h.record(sub.UUID, Event{Kind: EventFailed, Path: path, Err: err}, stats, reporter)
			continue
		}

		h.metrics.ObserveDownload(time.Since(start), written)
		h.record(sub.UUID, Event{Kind: EventSuccess, Path: path}, stats, reporter)

		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	return nil
}

// record counts one file outcome and reports it
func (h *Harvester) record(submission string, ev Event, stats *Stats, reporter Reporter) {
	switch ev.Kind {
	case EventSuccess:
		stats.Successful++
	case EventFailed:
		stats.Failed++
	case EventSkipped:
		stats.Skipped++
	}

	outcome := ev.Kind.Outcome()
	h.metrics.RecordFile(outcome)
	logger.LogDownload(h.logger, submission, ev.Path, outcome, ev.Err)
	reporter.Report(ev)
	reporter.Progress(*stats)
}
