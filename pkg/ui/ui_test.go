package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kobomedia/pkg/harvester"
	"kobomedia/pkg/history"
)

func TestMain(m *testing.M) {
	SetColor(false)
	m.Run()
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, false)

	r.Report(harvester.Event{Kind: harvester.EventPage, Page: 1, Results: 2})
	r.Report(harvester.Event{Kind: harvester.EventSuccess, Path: "a/u/1.jpg"})
	r.Report(harvester.Event{Kind: harvester.EventFailed, Path: "a/u/2.jpg", Err: errors.New("404")})
	r.Report(harvester.Event{Kind: harvester.EventSkipped, Path: "a/u/3.jpg"})
	r.Progress(harvester.Stats{Successful: 1})

	assert.Equal(t, "Page 1: 2 submissions\n"+
		"Success: a/u/1.jpg\n"+
		"Fail: a/u/2.jpg\n"+
		"File already exists, skipping: a/u/3.jpg\n", buf.String())
}

func TestConsoleReporterStatusLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, true)

	r.Progress(harvester.Stats{Successful: 2, Failed: 1})
	r.Report(harvester.Event{Kind: harvester.EventSuccess, Path: "x.jpg"})
	r.Finish()

	assert.Equal(t, "\rsaved 2  failed 1  skipped 0\nSuccess: x.jpg\n", buf.String())
}

func TestTranscript(t *testing.T) {
	tr := NewTranscript()
	tr.Report(harvester.Event{Kind: harvester.EventSuccess, Path: "a.jpg"})
	tr.Report(harvester.Event{Kind: harvester.EventSkipped, Path: "b.jpg"})

	assert.Equal(t, []string{"Success: a.jpg", "File already exists, skipping: b.jpg"}, tr.Lines())
	assert.Equal(t, harvester.Stats{}, tr.Stats())

	tr.Progress(harvester.Stats{Successful: 1, Skipped: 1})
	assert.Equal(t, harvester.Stats{Successful: 1, Skipped: 1}, tr.Stats())
}

func TestRenderStats(t *testing.T) {
	out := RenderStats(harvester.Stats{Successful: 12, Failed: 3, Skipped: 7, Pages: 2, Submissions: 9})

	for _, want := range []string{"Outcome", "Successful", "12", "Failed", "Skipped", "7", "Submissions"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "╭")
}

func TestRenderRuns(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	out := RenderRuns([]history.Run{{
		ID: "r1", AssetUID: "aXyZ", Status: "partial",
		StartedAt: start, FinishedAt: start.Add(95 * time.Second),
		Successful: 4, Failed: 1, ArchivePath: "/tmp/aXyZ.zip",
	}})

	assert.Contains(t, out, "aXyZ")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "/tmp/aXyZ.zip")
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	defer func() { Out = prev }()

	PrintInfo("Archive", "/tmp/a.zip")
	PrintError("ZIP file could not be created.")
	PrintWarning("walk ended early", "page 3")

	assert.Equal(t, "Archive: /tmp/a.zip\nZIP file could not be created.\nwalk ended early: page 3\n", buf.String())
}
