package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/vantage/types"
)

// Sink abstracts persistence for policies.
//
// Methods are batch-oriented to support both strict (batch of 1) and
// buffered policies. Implementations must preserve order within a batch.
type Sink interface {
	// WriteParts persists a batch of forwarded parts.
	WriteParts(ctx context.Context, records []*types.PartRecord) error

	// WriteSnapshots persists a batch of artifact snapshots.
	WriteSnapshots(ctx context.Context, snaps []*types.ArtifactSnapshot) error

	// Close releases any resources held by the sink.
	Close() error
}

// WriteOp represents a write operation for ordering verification.
type WriteOp struct {
	Type      string // "parts" or "snapshots"
	Parts     []*types.PartRecord
	Snapshots []*types.ArtifactSnapshot
}

// StubSink is a test sink that accepts writes without persisting.
type StubSink struct {
	mu sync.Mutex

	PartsWritten     int64
	SnapshotsWritten int64
	PartBatches      int64
	SnapshotBatches  int64
	Closed           bool

	WrittenParts     []*types.PartRecord
	WrittenSnapshots []*types.ArtifactSnapshot

	// WriteOrder tracks the order of write operations.
	WriteOrder []WriteOp

	// ErrorOnWrite, if non-nil, is returned by every write.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteParts records the parts.
func (s *StubSink) WriteParts(_ context.Context, records []*types.PartRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.PartBatches++
	s.PartsWritten += int64(len(records))
	s.WrittenParts = append(s.WrittenParts, records...)
	s.WriteOrder = append(s.WriteOrder, WriteOp{Type: "parts", Parts: records})
	return nil
}

// WriteSnapshots records the snapshots.
func (s *StubSink) WriteSnapshots(_ context.Context, snaps []*types.ArtifactSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.SnapshotBatches++
	s.SnapshotsWritten += int64(len(snaps))
	s.WrittenSnapshots = append(s.WrittenSnapshots, snaps...)
	s.WriteOrder = append(s.WriteOrder, WriteOp{Type: "snapshots", Snapshots: snaps})
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// SetError sets the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorOnWrite = err
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		PartsWritten:     s.PartsWritten,
		SnapshotsWritten: s.SnapshotsWritten,
		PartBatches:      s.PartBatches,
		SnapshotBatches:  s.SnapshotBatches,
		Closed:           s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	PartsWritten     int64
	SnapshotsWritten int64
	PartBatches      int64
	SnapshotBatches  int64
	Closed           bool
}
