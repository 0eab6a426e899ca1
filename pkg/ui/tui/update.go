package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"kobomedia/pkg/harvester"
)

// EventMsg carries one run event
type EventMsg harvester.Event

// StatsMsg carries the running totals
type StatsMsg harvester.Stats

// DoneMsg is sent once the run has returned; it ends the program
type DoneMsg struct {
	Result *harvester.Result
	Err    error
}

// TickMsg is sent periodically to refresh the elapsed time
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = progressWidth(msg.Width)
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case EventMsg:
		m.applyEvent(harvester.Event(msg))
		return m, nil

	case StatsMsg:
		m.stats = harvester.Stats(msg)
		return m, nil

	case DoneMsg:
		m.finish(msg.Result, msg.Err)
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		if !m.done {
			m.aborted = true
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func progressWidth(termWidth int) int {
	w := termWidth - 20
	switch {
	case w < 10:
		return 10
	case w > 60:
		return 60
	}
	return w
}
