package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ZacxDev/fetchooni/runner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg time.Time

// FinishedMsg tells the view the run is over. Send it with
// Program.Send from the goroutine driving the runner.
type FinishedMsg struct {
	Err error
}

type Model struct {
	viewport      viewport.Model
	logView       viewport.Model
	status        runner.StatusManager
	names         []string
	selectedIdx   int
	showingLogs   bool
	logAutoscroll bool
	done          bool
	err           error
}

func NewModel(names []string, status runner.StatusManager) *Model {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &Model{
		viewport:      viewport.New(160, 40),
		logView:       viewport.New(160, 20),
		status:        status,
		names:         sorted,
		logAutoscroll: true,
	}
}

func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.done = true
			return m, tea.Quit
		case "up", "k":
			if !m.showingLogs {
				m.selectedIdx = (m.selectedIdx - 1 + len(m.names)) % len(m.names)
			} else {
				m.logAutoscroll = false
				m.logView, cmd = m.logView.Update(msg)
				cmds = append(cmds, cmd)
			}
		case "down", "j":
			if !m.showingLogs {
				m.selectedIdx = (m.selectedIdx + 1) % len(m.names)
			} else {
				m.logView, cmd = m.logView.Update(msg)
				cmds = append(cmds, cmd)
			}
		case "enter", " ":
			m.showingLogs = !m.showingLogs
			if m.showingLogs {
				m.logAutoscroll = true
				m.updateLogView()
			}
		case "esc":
			m.showingLogs = false
		}
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 1
		m.logView.Width = msg.Width
		m.logView.Height = msg.Height / 2
		return m, nil
	case FinishedMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case tickMsg:
		if !m.done {
			cmds = append(cmds, tickCmd())
		}
	}

	m.viewport.SetContent(m.statusView())
	if m.showingLogs && m.logAutoscroll {
		m.updateLogView()
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.viewport.View())
	if m.showingLogs {
		sb.WriteString("\n\nOutput:\n")
		sb.WriteString(m.logView.View())
	}
	sb.WriteString("\n\033[1mPress q to quit, enter/space to toggle logs, up/down or j/k to navigate\033[0m")
	return sb.String()
}

// Err returns the run error carried by the FinishedMsg, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) statusView() string {
	snapshot := m.status.Snapshot()

	var sb strings.Builder
	sb.WriteString("Fetchooni Status Report\n\n")

	for i, name := range m.names {
		status, ok := snapshot[name]
		if !ok {
			continue
		}

		var duration time.Duration
		if !status.EndTime.IsZero() {
			duration = status.EndTime.Sub(status.StartTime)
		} else if !status.StartTime.IsZero() {
			duration = time.Since(status.StartTime)
		}

		statusColor := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
		switch status.Status {
		case runner.StatusCompleted:
			statusColor = statusColor.Foreground(lipgloss.Color("82"))
		case runner.StatusUpToDate:
			statusColor = statusColor.Foreground(lipgloss.Color("243"))
		case runner.StatusFailed:
			statusColor = statusColor.Foreground(lipgloss.Color("160"))
		}

		prefix := "  "
		if i == m.selectedIdx {
			prefix = "> "
		}

		sb.WriteString(fmt.Sprintf(
			"%s%-24s | %-10s | %-10s\n",
			prefix,
			name,
			statusColor.Render(status.Status),
			duration.Round(time.Millisecond),
		))
	}

	return sb.String()
}

func (m *Model) updateLogView() {
	if m.selectedIdx >= len(m.names) {
		return
	}

	status := m.status.Status(m.names[m.selectedIdx])
	logContent := strings.Join(status.LogLines, "\n")
	if logContent == "" {
		m.logView.SetContent("This target has not produced output yet")
	} else {
		m.logView.SetContent(logContent)
	}
	if m.logAutoscroll {
		m.logView.GotoBottom()
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
