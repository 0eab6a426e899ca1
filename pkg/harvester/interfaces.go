package harvester

import (
	"context"
	"io"
	"time"

	"kobomedia/pkg/history"
	"kobomedia/pkg/kobo"
)

// KoboClient is the part of the API client the harvester needs
type KoboClient interface {
	FetchPage(ctx context.Context, pageURL string) (*kobo.Page, error)
	Download(ctx context.Context, url string, w io.Writer, chunkSize int) (int64, error)
}

// MetricsRecorder receives run measurements
type MetricsRecorder interface {
	RecordPage()
	RecordFile(outcome string)
	ObserveDownload(d time.Duration, bytes int64)
	ObserveRun(status string, d time.Duration)
}

// Publisher uploads a finished archive and returns where it went
type Publisher interface {
	Publish(ctx context.Context, path, assetUID string) (string, error)
}

// RunRecorder persists a summary of every run
type RunRecorder interface {
	Record(ctx context.Context, run history.Run) error
}

type nopMetrics struct{}

func (nopMetrics) RecordPage()                          {}
func (nopMetrics) RecordFile(string)                    {}
func (nopMetrics) ObserveDownload(time.Duration, int64) {}
func (nopMetrics) ObserveRun(string, time.Duration)     {}
