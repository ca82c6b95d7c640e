package reader

import (
	"context"
	"slices"
	"sync"

	"github.com/pithecene-io/vantage/lode"
	"github.com/pithecene-io/vantage/types"
)

// StubSource is an in-memory Source for tests.
type StubSource struct {
	mu       sync.Mutex
	sessions map[string][]types.ArtifactSnapshot
	err      error
}

// NewStubSource creates an empty stub source.
func NewStubSource() *StubSource {
	return &StubSource{sessions: make(map[string][]types.ArtifactSnapshot)}
}

// Add appends archived snapshots to a session.
func (s *StubSource) Add(snaps ...types.ArtifactSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snaps {
		s.sessions[snap.SessionID] = append(s.sessions[snap.SessionID], snap)
	}
}

// SetError makes every call fail with err.
func (s *StubSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// QueryHistory implements Source. An unknown session yields
// lode.ErrNoHistory, as the archive does.
func (s *StubSource) QueryHistory(_ context.Context, sessionID string) ([]types.ArtifactSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	snaps, ok := s.sessions[sessionID]
	if !ok {
		return nil, lode.ErrNoHistory
	}
	return slices.Clone(snaps), nil
}

// ListSessions implements Source.
func (s *StubSource) ListSessions(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
