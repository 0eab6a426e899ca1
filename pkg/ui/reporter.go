package ui

import (
	"fmt"
	"io"
	"sync"

	"kobomedia/pkg/harvester"
)

// ConsoleReporter prints run events as plain lines
type ConsoleReporter struct {
	w io.Writer
	// statusLine redraws a running total on one line after every file
	statusLine bool
	drawn      bool
}

// NewConsoleReporter writes events to w. With statusLine set, a running
// total is redrawn in place after each file; use it only on a terminal.
func NewConsoleReporter(w io.Writer, statusLine bool) *ConsoleReporter {
	return &ConsoleReporter{w: w, statusLine: statusLine}
}

// Report prints one event line
func (c *ConsoleReporter) Report(ev harvester.Event) {
	c.clearStatus()

	msg := ev.Message()
	switch ev.Kind {
	case harvester.EventSuccess:
		msg = Green(msg)
	case harvester.EventFailed:
		msg = Red(msg)
	case harvester.EventSkipped:
		msg = Dim(msg)
	default:
		msg = Magenta(msg)
	}
	fmt.Fprintln(c.w, msg)
}

// Progress redraws the running totals when the status line is enabled
func (c *ConsoleReporter) Progress(stats harvester.Stats) {
	if !c.statusLine {
		return
	}
	fmt.Fprintf(c.w, "\r%s %d  %s %d  %s %d",
		Green("saved"), stats.Successful,
		Red("failed"), stats.Failed,
		Dim("skipped"), stats.Skipped)
	c.drawn = true
}

// Finish ends a pending status line
func (c *ConsoleReporter) Finish() {
	c.clearStatus()
}

func (c *ConsoleReporter) clearStatus() {
	if c.drawn {
		fmt.Fprintln(c.w)
		c.drawn = false
	}
}

// Transcript collects event lines in memory, for the dashboard
type Transcript struct {
	mu    sync.Mutex
	lines []string
	stats harvester.Stats
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Report appends the event line
func (t *Transcript) Report(ev harvester.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, ev.Message())
}

// Progress keeps the latest totals
func (t *Transcript) Progress(stats harvester.Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = stats
}

// Lines returns a copy of the collected lines
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// Stats returns the latest totals seen by Progress
func (t *Transcript) Stats() harvester.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
