package harvester

import "fmt"

// Stats counts the outcome of every attachment considered in a run
type Stats struct {
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Pages       int `json:"pages"`
	Submissions int `json:"submissions"`
}

// EventKind identifies what an Event reports
type EventKind int

const (
	EventPage EventKind = iota
	EventSuccess
	EventFailed
	EventSkipped
)

// Outcome returns the lowercase name used in logs and metrics
func (k EventKind) Outcome() string {
	switch k {
	case EventSuccess:
		return "successful"
	case EventFailed:
		return "failed"
	case EventSkipped:
		return "skipped"
	default:
		return "page"
	}
}

// Event is one user-facing line of run output
type Event struct {
	Kind    EventKind
	Path    string
	Page    int
	Results int
	Err     error
}

// Message renders the event the way it is shown to the user
func (e Event) Message() string {
	switch e.Kind {
	case EventSuccess:
		return "Success: " + e.Path
	case EventFailed:
		return "Fail: " + e.Path
	case EventSkipped:
		return "File already exists, skipping: " + e.Path
	default:
		return fmt.Sprintf("Page %d: %d submissions", e.Page, e.Results)
	}
}

// Level is the lowest verbosity at which the event is shown
func (e Event) Level() int {
	if e.Kind == EventPage {
		return 2
	}
	return 3
}

// Reporter receives run output. Report gets the events allowed by the
// run's verbosity; Progress gets the running totals after every file.
type Reporter interface {
	Report(ev Event)
	Progress(stats Stats)
}

type nopReporter struct{}

func (nopReporter) Report(Event)   {}
func (nopReporter) Progress(Stats) {}

// NopReporter discards all run output
func NopReporter() Reporter { return nopReporter{} }

type verbosityFilter struct {
	next      Reporter
	verbosity int
}

func (f verbosityFilter) Report(ev Event) {
	if ev.Level() <= f.verbosity {
		f.next.Report(ev)
	}
}

func (f verbosityFilter) Progress(stats Stats) { f.next.Progress(stats) }

func filterReporter(r Reporter, verbosity int) Reporter {
	if r == nil {
		return nopReporter{}
	}
	return verbosityFilter{next: r, verbosity: verbosity}
}
