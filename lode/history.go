package lode

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/vantage/types"
)

// ErrNoHistory is returned when a session has no archived artifacts.
var ErrNoHistory = errors.New("no archived artifacts found")

// NewReadDataset opens a dataset for reading with the same codec and layout
// as the write path.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// NewReadDatasetFS opens a read dataset on the filesystem.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// Archive is a read handle on an archived dataset.
type Archive struct {
	ds lode.Dataset
}

// NewArchive wraps ds for history queries.
func NewArchive(ds lode.Dataset) *Archive {
	return &Archive{ds: ds}
}

// Archive returns a read handle on the client's dataset.
func (c *LodeClient) Archive() *Archive {
	return NewArchive(c.dataset)
}

// QueryHistory calls QueryHistory on the archive's dataset.
func (a *Archive) QueryHistory(ctx context.Context, sessionID string) ([]types.ArtifactSnapshot, error) {
	return QueryHistory(ctx, a.ds, sessionID)
}

// ListSessions calls ListSessions on the archive's dataset.
func (a *Archive) ListSessions(ctx context.Context) ([]string, error) {
	return ListSessions(ctx, a.ds)
}

// QueryHistory returns the archived artifacts of a session, one per
// artifact id, in the order the ids were first archived. When an id was
// archived more than once (a revived artifact completing again), the most
// recent snapshot wins.
func QueryHistory(ctx context.Context, ds lode.Dataset, sessionID string) ([]types.ArtifactSnapshot, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	var history []types.ArtifactSnapshot
	index := make(map[string]int)

	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "record_kind", RecordKindArtifact) {
			continue
		}
		if !snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are
		// authoritative.
		for _, item := range data {
			rec, ok := item.(map[string]any)
			if !ok {
				continue
			}
			as, ok := snapshotFromRecord(rec)
			if !ok || (sessionID != "" && as.SessionID != sessionID) {
				continue
			}
			if i, seen := index[as.Artifact.ID]; seen {
				if !as.RecordedAt.Before(history[i].RecordedAt) {
					history[i] = as
				}
				continue
			}
			index[as.Artifact.ID] = len(history)
			history = append(history, as)
		}
	}

	if len(history) == 0 {
		return nil, ErrNoHistory
	}
	return history, nil
}

// ListSessions returns the ids of all sessions with archived records.
func ListSessions(ctx context.Context, ds lode.Dataset) ([]string, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	seen := make(map[string]struct{})
	for _, snap := range snapshots {
		for _, f := range snap.Manifest.Files {
			if id, ok := partitionValue(f.Path, "session_id"); ok {
				seen[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// snapshotMatchesFilter checks if a snapshot's file paths match the given
// partition key=value filter. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if v, ok := partitionValue(f.Path, key); ok && v == value {
			return true
		}
	}
	return false
}

// partitionValue extracts the value of an exact key= segment from a
// Hive-partitioned path. Whole segments are compared so that
// session_id=s-1 never matches session_id=s-10.
func partitionValue(path, key string) (string, bool) {
	prefix := key + "="
	for seg := range strings.SplitSeq(path, "/") {
		if v, ok := strings.CutPrefix(seg, prefix); ok {
			return v, true
		}
	}
	return "", false
}
