package session

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSessions bounds a registry when no size is configured.
const DefaultMaxSessions = 1024

// Session is one registered chat session.
type Session struct {
	ID       string
	Provider *Provider
	Page     *Page
	Created  time.Time
}

// Registry holds an independent provider per session id. It is bounded by
// an LRU; the least recently used session is forgotten when full.
type Registry struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *Session]
	onOpen  func(*Session)
	onEvict func(*Session)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOnOpen is called after a session is created.
func WithOnOpen(fn func(*Session)) RegistryOption {
	return func(r *Registry) { r.onOpen = fn }
}

// WithOnEvict is called when a session leaves the registry through
// capacity eviction or Remove.
func WithOnEvict(fn func(*Session)) RegistryOption {
	return func(r *Registry) { r.onEvict = fn }
}

// NewRegistry creates a registry holding at most size sessions.
// A size of zero or less uses DefaultMaxSessions.
func NewRegistry(size int, opts ...RegistryOption) (*Registry, error) {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	cache, err := lru.NewWithEvict(size, func(_ string, s *Session) {
		if r.onEvict != nil {
			r.onEvict(s)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("session registry: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Get returns the session for id and marks it recently used.
func (r *Registry) Get(id string) (*Session, bool) {
	return r.cache.Get(id)
}

// Peek returns the session for id without marking it recently used.
func (r *Registry) Peek(id string) (*Session, bool) {
	return r.cache.Peek(id)
}

// Open returns the session for id, creating it with a fresh provider if
// it does not exist. created reports whether a new session was made.
func (r *Registry) Open(id string) (s *Session, created bool) {
	r.mu.Lock()
	if s, ok := r.cache.Get(id); ok {
		r.mu.Unlock()
		return s, false
	}
	p := NewProvider()
	s = &Session{ID: id, Provider: p, Page: NewPage(p), Created: time.Now()}
	r.cache.Add(id, s)
	r.mu.Unlock()

	if r.onOpen != nil {
		r.onOpen(s)
	}
	return s, true
}

// Remove drops the session for id. It returns false if it was absent.
func (r *Registry) Remove(id string) bool {
	return r.cache.Remove(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// IDs returns live session ids, oldest first.
func (r *Registry) IDs() []string {
	return r.cache.Keys()
}
