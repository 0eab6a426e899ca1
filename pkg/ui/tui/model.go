package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kobomedia/pkg/harvester"
)

// Log pane levels
const (
	LevelInfo    = "INFO"
	LevelPage    = "PAGE"
	LevelSuccess = "SUCCESS"
	LevelWarn    = "WARN"
	LevelError   = "ERROR"
)

const defaultMaxLogMessages = 200

// LogMessage is one line of the log pane
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model of a single download run
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	assetUID  string
	stats     harvester.Stats
	page      int
	lastPath  string
	startedAt time.Time

	result *harvester.Result
	err    error
	done   bool
	// aborted is set when the user quit before the run finished
	aborted bool

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates the model for a run of assetUID
func NewModel(assetUID string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return &Model{
		spinner:        s,
		progress:       progress.New(progress.WithGradient(string(neonMagenta), string(neonGreen))),
		assetUID:       assetUID,
		startedAt:      time.Now(),
		maxLogMessages: defaultMaxLogMessages,
	}
}

// Init starts the spinner and the refresh tick
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Stats returns the latest totals
func (m *Model) Stats() harvester.Stats {
	return m.stats
}

// Done reports whether the run has finished
func (m *Model) Done() bool {
	return m.done
}

// Aborted reports whether the user quit before the run finished
func (m *Model) Aborted() bool {
	return m.aborted
}

func (m *Model) applyEvent(ev harvester.Event) {
	switch ev.Kind {
	case harvester.EventPage:
		m.page = ev.Page
		m.AddLogMessage(LevelPage, ev.Message())
	case harvester.EventSuccess:
		m.lastPath = ev.Path
		m.AddLogMessage(LevelSuccess, ev.Message())
	case harvester.EventFailed:
		m.lastPath = ev.Path
		msg := ev.Message()
		if ev.Err != nil {
			msg += " (" + ev.Err.Error() + ")"
		}
		m.AddLogMessage(LevelError, msg)
	case harvester.EventSkipped:
		m.lastPath = ev.Path
		m.AddLogMessage(LevelInfo, ev.Message())
	}
}

func (m *Model) finish(result *harvester.Result, err error) {
	m.done = true
	m.result = result
	m.err = err
	if result != nil {
		m.stats = result.Stats
	}

	switch {
	case err != nil:
		m.AddLogMessage(LevelError, err.Error())
	case result != nil && result.WalkErr != nil:
		m.AddLogMessage(LevelWarn, "Walk stopped early: "+result.WalkErr.Error())
	}
	if result != nil && result.ArchivePath != "" {
		m.AddLogMessage(LevelSuccess, "Archive written: "+result.ArchivePath)
	}
	if result != nil && result.PublishedURL != "" {
		m.AddLogMessage(LevelSuccess, "Published: "+result.PublishedURL)
	}
}

// AddLogMessage appends a line to the log pane, dropping the oldest
// lines beyond maxLogMessages
func (m *Model) AddLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})
	if over := len(m.logMessages) - m.maxLogMessages; over > 0 {
		m.logMessages = m.logMessages[over:]
	}
}

// processed is the number of attachments with an outcome so far
func (m *Model) processed() int {
	return m.stats.Successful + m.stats.Failed + m.stats.Skipped
}

// successRatio is the share of processed attachments that are on disk
func (m *Model) successRatio() float64 {
	total := m.processed()
	if total == 0 {
		return 0
	}
	return float64(m.stats.Successful+m.stats.Skipped) / float64(total)
}
