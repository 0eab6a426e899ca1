package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	sections := []string{
		headerStyle.Render("kobomedia  " + m.assetUID),
		m.renderStatus(),
		m.renderStatsPanel(),
		m.renderLogsPanel(),
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return baseStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderStatus() string {
	switch {
	case !m.done:
		status := fmt.Sprintf(" %s Downloading page %d", m.spinner.View(), m.page)
		if m.lastPath != "" {
			status += "  " + logTimestampStyle.Render(m.lastPath)
		}
		return status
	case m.err != nil:
		return errorStyle.Render(" Run failed")
	case m.result != nil && m.result.Status() != "ok":
		return warningStyle.Render(" Run finished with problems (" + m.result.Status() + ")")
	default:
		return successStyle.Render(" Run complete")
	}
}

func (m *Model) renderStatsPanel() string {
	end := time.Now()
	if m.result != nil {
		end = m.result.FinishedAt
	}

	row := func(label string, value interface{}) string {
		return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(fmt.Sprint(value)))
	}
	lines := []string{
		titleStyle.Render(" STATS "),
		row("Elapsed:", formatDuration(end.Sub(m.startedAt))),
		row("Pages:", m.stats.Pages),
		row("Submissions:", m.stats.Submissions),
		row("Saved:", m.stats.Successful),
		row("Failed:", m.stats.Failed),
		row("Skipped:", m.stats.Skipped),
		m.progress.ViewAs(m.successRatio()),
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderLogsPanel() string {
	height := 10
	if m.height > 0 {
		// leave room for the header, status and stats panel
		height = max(m.height-20, 3)
	}

	messages := m.logMessages
	if len(messages) > height {
		messages = messages[len(messages)-height:]
	}

	lines := []string{titleStyle.Render(" LOG ")}
	for _, msg := range messages {
		line := logTimestampStyle.Render(msg.Time.Format("15:04:05")) + " " +
			lipgloss.NewStyle().Foreground(msg.Color).Render(msg.Message)
		lines = append(lines, line)
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderHelp() string {
	help := []string{
		"q / esc / ctrl+c  stop the run and quit",
		"ctrl+l            clear the log",
		"?                 toggle this help",
	}
	return helpStyle.Render(strings.Join(help, "\n"))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	secs := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, mins, secs)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
