package reader

import (
	"context"

	"github.com/pithecene-io/vantage/types"
)

// Reader abstracts read-only archive access for CLI commands.
// Implementations may read a lode archive or serve canned data.
type Reader interface {
	// ListSessions returns the sessions with archived records.
	ListSessions(ctx context.Context) ([]SessionItem, error)
	// History returns the archived artifacts of one session.
	History(ctx context.Context, sessionID string) (*HistoryResponse, error)
}

// Source is the archive a Reader reads from. *lode.Archive satisfies it.
type Source interface {
	QueryHistory(ctx context.Context, sessionID string) ([]types.ArtifactSnapshot, error)
	ListSessions(ctx context.Context) ([]string, error)
}
