package reader

import (
	"context"
	"errors"
	"fmt"
)

// ArchiveReader reads session history from an archive.
type ArchiveReader struct {
	source Source
}

// NewArchiveReader creates a reader over source.
func NewArchiveReader(source Source) (*ArchiveReader, error) {
	if source == nil {
		return nil, errors.New("archive reader requires a source")
	}
	return &ArchiveReader{source: source}, nil
}

// ListSessions implements Reader.
func (r *ArchiveReader) ListSessions(ctx context.Context) ([]SessionItem, error) {
	ids, err := r.source.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	items := make([]SessionItem, len(ids))
	for i, id := range ids {
		items[i] = SessionItem{SessionID: id}
	}
	return items, nil
}

// History implements Reader. Errors from the source are wrapped, so
// errors.Is(err, lode.ErrNoHistory) still matches.
func (r *ArchiveReader) History(ctx context.Context, sessionID string) (*HistoryResponse, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	snaps, err := r.source.QueryHistory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return BuildHistory(sessionID, snaps), nil
}
