package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/vantage/canvas"
	"github.com/pithecene-io/vantage/cli/reader"
	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/stream"
	"github.com/pithecene-io/vantage/types"
)

// CanvasSession is the data of a canvas view.
type CanvasSession struct {
	// Title heads the view, typically the session id.
	Title    string
	Provider *session.Provider
	Panel    *canvas.Panel
	// Selector defaults to the built-in renderers.
	Selector *canvas.Selector
}

// HistorySession loads archived artifacts into a fresh provider, in
// archive order, so the history can be browsed like a live session.
// The last archived artifact is current.
func HistorySession(h *reader.HistoryResponse) *CanvasSession {
	p := session.NewProvider()
	for _, art := range h.Artifacts {
		p.Dispatch(stream.Stream(art.ID, art.Type, art.Payload))
		switch art.Status {
		case types.StatusComplete:
			p.Dispatch(stream.Complete(art.ID, art.Type, art.Payload))
		case types.StatusError:
			p.Dispatch(stream.Fail(art.ID, art.Type, art.Error))
		}
	}
	return &CanvasSession{Title: h.SessionID, Provider: p, Panel: canvas.NewPanel()}
}

// CanvasModel is a Bubble Tea model for the artifact canvas.
type CanvasModel struct {
	data     *CanvasSession
	cursor   int
	width    int
	height   int
	quitting bool
}

// NewCanvasModel creates a canvas model with the cursor on the active card.
func NewCanvasModel(data *CanvasSession) CanvasModel {
	if data.Panel == nil {
		data.Panel = canvas.NewPanel()
	}
	if data.Selector == nil {
		data.Selector = canvas.NewSelector()
	}
	m := CanvasModel{data: data}
	for i, c := range canvas.Cards(data.Provider.State()) {
		if c.Active {
			m.cursor = i
		}
	}
	return m
}

// Init implements tea.Model.
func (m CanvasModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m CanvasModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		cards := canvas.Cards(m.data.Provider.State())
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(cards)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Select):
			if m.cursor < len(cards) {
				canvas.SelectCard(m.data.Provider, m.data.Panel, cards[m.cursor].ID)
			}
		case key.Matches(msg, keys.Dismiss):
			m.data.Panel.Dismiss()
		case key.Matches(msg, keys.Open):
			m.data.Panel.Open()
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m CanvasModel) View() string {
	if m.quitting {
		return ""
	}
	state := m.data.Provider.State()

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Canvas " + m.data.Title))
	b.WriteString("\n")
	if tabs := canvas.Tabs(state); len(tabs) > 0 {
		b.WriteString(canvas.RenderTabs(tabs))
		b.WriteString("\n\n")
	}

	switch m.data.Panel.State(state) {
	case canvas.PanelEmpty:
		b.WriteString(canvas.MutedStyle.Render("No artifact to display"))
	case canvas.PanelHidden:
		b.WriteString(canvas.MutedStyle.Render(fmt.Sprintf("Panel dismissed (%s)", state.Current.ID)))
	default:
		b.WriteString(m.data.Selector.Select(state).Render())
	}
	b.WriteString("\n\n")
	b.WriteString(canvas.RenderCards(canvas.Cards(state), m.cursor))

	help := HelpStyle.Render("↑/↓ move • enter select • d dismiss • o open • q quit")
	return b.String() + "\n" + help
}

// keyMap defines key bindings.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Dismiss key.Binding
	Open    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "previous card"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "next card"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "show card"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("d", "esc"),
		key.WithHelp("d", "dismiss panel"),
	),
	Open: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "open panel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunCanvasTUI runs the canvas TUI. data is a *CanvasSession for
// canvas_session and a *reader.HistoryResponse for canvas_history.
func RunCanvasTUI(viewType string, data any) error {
	var cs *CanvasSession
	switch viewType {
	case ViewCanvasSession:
		d, ok := data.(*CanvasSession)
		if !ok || d.Provider == nil {
			return fmt.Errorf("invalid data type for %s", viewType)
		}
		cs = d
	case ViewCanvasHistory:
		h, ok := data.(*reader.HistoryResponse)
		if !ok {
			return fmt.Errorf("invalid data type for %s", viewType)
		}
		cs = HistorySession(h)
	default:
		return fmt.Errorf("unknown view type: %s", viewType)
	}

	p := tea.NewProgram(NewCanvasModel(cs), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
