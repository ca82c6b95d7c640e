package canvas

import (
	"strings"
	"sync"

	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/stream"
)

// Tab is one entry of the informational tab strip.
type Tab struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// Tabs returns one tab per seen artifact type, in first-seen order.
// The tab matching the current artifact's type is active.
func Tabs(state stream.State) []Tab {
	tabs := make([]Tab, len(state.Types))
	for i, typ := range state.Types {
		tabs[i] = Tab{Type: typ, Active: state.Current != nil && state.Current.Type == typ}
	}
	return tabs
}

// RenderTabs draws the tab strip on one line.
func RenderTabs(tabs []Tab) string {
	parts := make([]string, len(tabs))
	for i, t := range tabs {
		label := t.Type
		if label == "" {
			label = "(untyped)"
		}
		if t.Active {
			parts[i] = ActiveTabStyle.Render(label)
		} else {
			parts[i] = TabStyle.Render(label)
		}
	}
	return strings.Join(parts, MutedStyle.Render("│"))
}

// PanelState is the view-level state of the canvas panel.
type PanelState string

// Panel states.
const (
	PanelEmpty  PanelState = "no-artifact"
	PanelActive PanelState = "active"
	PanelHidden PanelState = "hidden"
)

// Panel tracks whether the canvas panel is dismissed. Dismissal is a view
// concern: it never clears the current artifact. A new stream action, a
// history selection, or a reset re-opens the panel.
type Panel struct {
	mu        sync.Mutex
	dismissed bool
}

// NewPanel returns an open panel.
func NewPanel() *Panel {
	return &Panel{}
}

// Dismiss hides the panel.
func (p *Panel) Dismiss() {
	p.mu.Lock()
	p.dismissed = true
	p.mu.Unlock()
}

// Open un-dismisses the panel.
func (p *Panel) Open() {
	p.mu.Lock()
	p.dismissed = false
	p.mu.Unlock()
}

// Dismissed reports whether the panel is dismissed.
func (p *Panel) Dismissed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dismissed
}

// Observe updates the panel from a provider change. Subscribe it to the
// session provider.
func (p *Panel) Observe(ch session.Change) {
	switch ch.Action.Kind {
	case stream.ActionStream, stream.ActionReset:
		p.Open()
	case stream.ActionSelect:
		if ch.Next.Current != nil && ch.Next.Current.ID == ch.Action.ID {
			p.Open()
		}
	}
}

// State derives the panel state for a snapshot.
func (p *Panel) State(state stream.State) PanelState {
	switch {
	case state.Current == nil:
		return PanelEmpty
	case p.Dismissed():
		return PanelHidden
	default:
		return PanelActive
	}
}
