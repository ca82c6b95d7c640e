package session

import "sync"

// Page is the consuming chat view of a provider. It owns the reset trigger:
// the provider never detects chat changes on its own.
type Page struct {
	provider *Provider

	mu     sync.Mutex
	chatID string
}

// NewPage binds a page to p.
func NewPage(p *Provider) *Page {
	return &Page{provider: p}
}

// Provider returns the page's provider.
func (pg *Page) Provider() *Provider {
	return pg.provider
}

// ChatID returns the chat currently shown.
func (pg *Page) ChatID() string {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	return pg.chatID
}

// Navigate records chatID as the chat shown by the page and resets the
// provider when it differs from the previous chat. The first navigation
// mounts the page on a fresh provider and does not reset. It returns true
// if a reset was issued.
func (pg *Page) Navigate(chatID string) bool {
	pg.mu.Lock()
	prev := pg.chatID
	pg.chatID = chatID
	pg.mu.Unlock()

	if prev == "" || prev == chatID {
		return false
	}
	pg.provider.Reset()
	return true
}
