package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/vantage/runtime"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsReplay:
		content = m.renderStatsReplay()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsReplay() string {
	data, ok := m.data.(*runtime.ReplayReport)
	if !ok {
		return "Invalid data type for stats_replay"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Replay " + data.SessionID))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Outcome:"),
		OutcomeStyle(string(data.Outcome)).Render(fmt.Sprintf("%s (exit %d)", data.Outcome, data.ExitCode))))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Message:"), ValueStyle.Render(data.Message)))
	if data.ChatID != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Chat:"), ValueStyle.Render(data.ChatID)))
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("Duration:"), ValueStyle.Render(fmt.Sprintf("%dms", data.DurationMs))))

	boxes := []string{m.renderStatBox("Parts", data.PartCount, highlightColor)}
	if a := data.Artifacts; a != nil {
		boxes = append(boxes,
			m.renderStatBox("Snapshots", a.Snapshots, successColor),
			m.renderStatBox("History", int64(a.History), primaryColor),
		)
	}
	if met := data.Metrics; met != nil {
		boxes = append(boxes,
			m.renderStatBox("Stale Dropped", met.StaleDropped, warningColor),
			m.renderStatBox("Decode Errors", met.DecodeErrors, errorColor),
		)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	if p := data.Policy; p != nil {
		b.WriteString("\n\n")
		b.WriteString(TitleStyle.Render("Policy " + p.Name))
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderStatBox("Persisted", p.PartsPersisted, successColor),
			m.renderStatBox("Dropped", p.PartsDropped, warningColor),
			m.renderStatBox("Snapshots", p.SnapshotsPersisted, highlightColor),
		))
		if len(p.FlushTriggers) > 0 {
			names := make([]string, 0, len(p.FlushTriggers))
			for name := range p.FlushTriggers {
				names = append(names, name)
			}
			sort.Strings(names)
			b.WriteString("\n")
			for _, name := range names {
				b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Flush "+name+":"),
					ValueStyle.Render(fmt.Sprintf("%d", p.FlushTriggers[name]))))
			}
		}
	}

	if n := data.Notify; n != nil && n.Received > 0 {
		b.WriteString("\n\n")
		b.WriteString(TitleStyle.Render("Notifications"))
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderStatBox("Published", n.Published, successColor),
			m.renderStatBox("Failed", n.PublishFailed, errorColor),
			m.renderStatBox("Skipped", n.Skipped, warningColor),
		))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
