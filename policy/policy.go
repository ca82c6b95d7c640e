// Package policy decides how forwarded parts and artifact snapshots reach
// the archive.
package policy

import (
	"context"
	"maps"
	"sync"

	"github.com/pithecene-io/vantage/types"
)

// Policy defines the persistence policy interface.
// Policies control buffering, dropping, and persistence behavior.
//
// Rules:
//   - May drop: incremental delta parts (text-delta, reasoning-delta, tool-input-delta)
//   - Must NOT drop: any other part, or an artifact snapshot
//   - Policy must not alter record shapes
//   - Policy failure terminates ingestion
type Policy interface {
	// IngestPart handles a forwarded part.
	// May drop droppable part types; must return an error rather than drop
	// any other part.
	IngestPart(ctx context.Context, record *types.PartRecord) error

	// IngestSnapshot handles an artifact snapshot. Snapshots are never dropped.
	IngestSnapshot(ctx context.Context, snap *types.ArtifactSnapshot) error

	// Flush flushes any buffered data.
	// Called on navigation, on end of stream, and on termination.
	Flush(ctx context.Context) error

	// Close cleans up policy resources.
	Close() error

	// Stats returns an atomic snapshot of policy metrics.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// TotalParts is the total number of parts received.
	TotalParts int64
	// PartsPersisted is the number of parts persisted.
	PartsPersisted int64
	// PartsDropped is the total number of parts dropped.
	PartsDropped int64
	// DroppedByType maps part types to drop counts.
	DroppedByType map[types.PartType]int64
	// TotalSnapshots is the total number of artifact snapshots received.
	TotalSnapshots int64
	// SnapshotsPersisted is the number of snapshots persisted.
	SnapshotsPersisted int64
	// BufferSize is the current buffer size in bytes (if buffered).
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of non-fatal errors encountered.
	Errors int64
}

// Droppable part types.
const (
	PartTextDelta      types.PartType = "text-delta"
	PartReasoningDelta types.PartType = "reasoning-delta"
	PartToolInputDelta types.PartType = "tool-input-delta"
)

var droppableTypes = map[types.PartType]bool{
	PartTextDelta:      true,
	PartReasoningDelta: true,
	PartToolInputDelta: true,
}

// IsDroppable returns true if the part type may be dropped by policy.
func IsDroppable(partType types.PartType) bool {
	return droppableTypes[partType]
}

// DroppableTypes returns the set of part types that may be dropped.
func DroppableTypes() map[types.PartType]bool {
	return maps.Clone(droppableTypes)
}

// statsRecorder is an internal helper for thread-safe stats management.
//
// Lock discipline:
//   - StrictPolicy and NoopPolicy use the locking methods
//   - BufferedPolicy and StreamingPolicy use the Locked methods only while
//     holding their own mu, so buffer state and counters change together
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			DroppedByType: make(map[types.PartType]int64),
		},
	}
}

func (r *statsRecorder) incTotalParts() {
	r.mu.Lock()
	r.stats.TotalParts++
	r.mu.Unlock()
}

func (r *statsRecorder) incPartsPersisted(n int64) {
	r.mu.Lock()
	r.stats.PartsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incPartsDropped(partType types.PartType) {
	r.mu.Lock()
	r.stats.PartsDropped++
	r.stats.DroppedByType[partType]++
	r.mu.Unlock()
}

func (r *statsRecorder) incTotalSnapshots() {
	r.mu.Lock()
	r.stats.TotalSnapshots++
	r.mu.Unlock()
}

func (r *statsRecorder) incSnapshotsPersisted(n int64) {
	r.mu.Lock()
	r.stats.SnapshotsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods; caller holds the owning policy's mu ---

func (r *statsRecorder) incTotalPartsLocked() {
	r.stats.TotalParts++
}

func (r *statsRecorder) incPartsPersistedLocked(n int64) {
	r.stats.PartsPersisted += n
}

func (r *statsRecorder) incPartsDroppedLocked(partType types.PartType) {
	r.stats.PartsDropped++
	r.stats.DroppedByType[partType]++
}

func (r *statsRecorder) incTotalSnapshotsLocked() {
	r.stats.TotalSnapshots++
}

func (r *statsRecorder) incSnapshotsPersistedLocked(n int64) {
	r.stats.SnapshotsPersisted += n
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

// snapshotLocked returns a copy of the stats with the given buffer size.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByType = maps.Clone(r.stats.DroppedByType)
	return s
}

// estimatePartSize returns a rough size in bytes for buffer accounting.
func estimatePartSize(record *types.PartRecord) int64 {
	size := int64(200)
	switch d := record.Part.Data.(type) {
	case string:
		size += int64(len(d))
	case map[string]any:
		size += int64(len(d) * 50)
	case []any:
		size += int64(len(d) * 50)
	}
	return size
}

// estimateSnapshotSize returns a rough size in bytes for buffer accounting.
func estimateSnapshotSize(snap *types.ArtifactSnapshot) int64 {
	size := int64(300 + len(snap.Artifact.Error))
	if rec, ok := snap.Artifact.Payload.(map[string]any); ok {
		size += int64(len(rec) * 50)
	}
	return size
}
