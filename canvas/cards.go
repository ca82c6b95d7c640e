package canvas

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/stream"
	"github.com/pithecene-io/vantage/types"
)

// Card is one inline history card.
type Card struct {
	ID     string               `json:"id"`
	Type   string               `json:"type"`
	Title  string               `json:"title,omitempty"`
	Status types.ArtifactStatus `json:"status"`
	Error  string               `json:"error,omitempty"`
	Active bool                 `json:"active"`
}

// Cards returns one card per history entry, in history order. The card
// whose id matches the current artifact is active.
func Cards(state stream.State) []Card {
	cards := make([]Card, len(state.History))
	for i, a := range state.History {
		cards[i] = Card{
			ID:     a.ID,
			Type:   a.Type,
			Title:  payloadTitle(a.Payload),
			Status: a.Status,
			Error:  a.Error,
			Active: state.Current != nil && state.Current.ID == a.ID,
		}
	}
	return cards
}

// SelectCard makes the card's artifact current and opens the panel.
// It returns false, leaving the panel untouched, for an unknown id.
func SelectCard(p *session.Provider, panel *Panel, id string) bool {
	if !p.Select(id) {
		return false
	}
	if panel != nil {
		panel.Open()
	}
	return true
}

func payloadTitle(payload any) string {
	rec, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	title, _ := rec["title"].(string)
	return title
}

// RenderCard draws one card.
func RenderCard(c Card) string {
	title := c.Title
	if title == "" {
		title = c.Type
	}
	if title == "" {
		title = c.ID
	}
	body := TitleStyle.Render(title) + "\n" +
		MutedStyle.Render(c.Type) + "  " + StatusStyle(c.Status).Render(string(c.Status))
	if c.Status == types.StatusError && c.Error != "" {
		body += "\n" + ErrorStyle.Render(c.Error)
	}
	if c.Active {
		return ActiveCardStyle.Render(body)
	}
	return CardStyle.Render(body)
}

// RenderCards stacks cards vertically, marking the cursor position with a
// pointer. A negative cursor draws no pointer.
func RenderCards(cards []Card, cursor int) string {
	if len(cards) == 0 {
		return MutedStyle.Render("no artifacts yet")
	}
	rendered := make([]string, len(cards))
	for i, c := range cards {
		pointer := "  "
		if i == cursor {
			pointer = WarningStyle.Render("> ")
		}
		rendered[i] = lipgloss.JoinHorizontal(lipgloss.Center, pointer, RenderCard(c))
	}
	return strings.Join(rendered, "\n")
}
