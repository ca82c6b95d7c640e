package policy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/types"
)

// FlushMode controls flush semantics for BufferedPolicy.
type FlushMode string

const (
	// FlushAtLeastOnce preserves all buffers on any failure.
	// May duplicate writes on retry but never loses data. Default.
	FlushAtLeastOnce FlushMode = "at_least_once"

	// FlushSnapshotsFirst writes snapshots, then parts. If parts fail after
	// snapshots succeeded, only the parts are kept for retry.
	FlushSnapshotsFirst FlushMode = "snapshots_first"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferParts is the maximum number of parts to buffer.
	// Zero means no limit (use MaxBufferBytes instead).
	MaxBufferParts int

	// MaxBufferBytes is the maximum buffer size in bytes (estimated).
	// Zero means no limit. At least one limit must be set.
	MaxBufferBytes int64

	// FlushMode controls flush failure semantics.
	FlushMode FlushMode

	// Logger is optional.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferParts: 1000,
		MaxBufferBytes: 10 * 1024 * 1024,
		FlushMode:      FlushAtLeastOnce,
	}
}

// ErrBufferFull is returned when the buffer is full and the record cannot be dropped.
var ErrBufferFull = errors.New("buffer full: cannot accept non-droppable record")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferParts or MaxBufferBytes must be set")

// ErrInvalidFlushMode is returned when FlushMode is unknown.
var ErrInvalidFlushMode = errors.New("invalid flush mode")

// BufferedPolicy implements buffered persistence with drop rules.
//
//   - Bounded buffer with explicit limits
//   - May drop delta parts; never drops other parts or snapshots
//   - Batch writes on flush
//   - Snapshots are written before parts on every flush
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex
	partBuffer  []*types.PartRecord
	snapBuffer  []*types.ArtifactSnapshot
	bufferBytes int64
	stats       *statsRecorder
}

// NewBufferedPolicy creates a new buffered policy.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferParts <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}

	if config.FlushMode == "" {
		config.FlushMode = FlushAtLeastOnce
	}
	switch config.FlushMode {
	case FlushAtLeastOnce, FlushSnapshotsFirst:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFlushMode, config.FlushMode)
	}

	return &BufferedPolicy{
		sink:       sink,
		config:     config,
		logger:     config.Logger,
		partBuffer: make([]*types.PartRecord, 0, max(config.MaxBufferParts, 100)),
		stats:      newStatsRecorder(),
	}, nil
}

// IngestPart buffers the part, applying drop rules if the buffer is full.
//
// Drop strategy when full:
//   - incoming part droppable: drop it
//   - incoming part not droppable and the buffer holds a droppable part:
//     evict the oldest droppable part
//   - otherwise: return ErrBufferFull
func (p *BufferedPolicy) IngestPart(_ context.Context, record *types.PartRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalPartsLocked()
	size := estimatePartSize(record)

	if p.hasRoomForPart(size) {
		p.appendPart(record, size)
		return nil
	}

	if IsDroppable(record.Part.Type) {
		p.stats.incPartsDroppedLocked(record.Part.Type)
		p.logDrop(record.Part.Type, "buffer_full")
		return nil
	}

	if p.dropOldestDroppable() && p.hasRoomForBytes(size) {
		p.appendPart(record, size)
		return nil
	}

	p.stats.incErrorsLocked()
	p.logBufferOverflow(record.Part.Type)
	return ErrBufferFull
}

func (p *BufferedPolicy) appendPart(record *types.PartRecord, size int64) {
	p.partBuffer = append(p.partBuffer, record)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// IngestSnapshot buffers the snapshot. Snapshots are never dropped; if the
// byte limit would be exceeded the call fails.
func (p *BufferedPolicy) IngestSnapshot(_ context.Context, snap *types.ArtifactSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalSnapshotsLocked()
	size := estimateSnapshotSize(snap)

	if !p.hasRoomForBytes(size) {
		p.stats.incErrorsLocked()
		return fmt.Errorf("%w: snapshot of %s (%d bytes) would exceed buffer limit", ErrBufferFull, snap.Artifact.ID, size)
	}

	p.snapBuffer = append(p.snapBuffer, snap)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
	return nil
}

// Flush writes all buffered snapshots and parts to the sink.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.mu.Lock()
	p.stats.incFlushLocked()
	parts := p.partBuffer
	snaps := p.snapBuffer
	p.mu.Unlock()

	if len(snaps) > 0 {
		if err := p.sink.WriteSnapshots(ctx, snaps); err != nil {
			p.mu.Lock()
			p.stats.incErrorsLocked()
			p.mu.Unlock()
			p.logFlushFailure("snapshots", err)
			return err
		}
		p.mu.Lock()
		p.stats.incSnapshotsPersistedLocked(int64(len(snaps)))
		p.mu.Unlock()
	}

	if len(parts) > 0 {
		if err := p.sink.WriteParts(ctx, parts); err != nil {
			p.mu.Lock()
			p.stats.incErrorsLocked()
			if p.config.FlushMode == FlushSnapshotsFirst {
				p.snapBuffer = p.snapBuffer[len(snaps):]
				p.recalculateBufferBytes()
			}
			p.mu.Unlock()
			p.logFlushFailure("parts", err)
			return err
		}
		p.mu.Lock()
		p.stats.incPartsPersistedLocked(int64(len(parts)))
		p.mu.Unlock()
	}

	// Ingest holds mu while appending, so anything added during the writes
	// sits after the flushed prefix.
	p.mu.Lock()
	p.partBuffer = slices.Clone(p.partBuffer[len(parts):])
	p.snapBuffer = slices.Clone(p.snapBuffer[len(snaps):])
	p.recalculateBufferBytes()
	p.mu.Unlock()

	return nil
}

// recalculateBufferBytes recomputes bufferBytes. Caller must hold mu.
func (p *BufferedPolicy) recalculateBufferBytes() {
	var total int64
	for _, r := range p.partBuffer {
		total += estimatePartSize(r)
	}
	for _, s := range p.snapBuffer {
		total += estimateSnapshotSize(s)
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(total)
}

// Close flushes remaining data and closes the sink.
func (p *BufferedPolicy) Close() error {
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns an atomic snapshot of policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(p.bufferBytes)
}

func (p *BufferedPolicy) hasRoomForPart(size int64) bool {
	if p.config.MaxBufferParts > 0 && len(p.partBuffer) >= p.config.MaxBufferParts {
		return false
	}
	return p.hasRoomForBytes(size)
}

func (p *BufferedPolicy) hasRoomForBytes(size int64) bool {
	return p.config.MaxBufferBytes <= 0 || p.bufferBytes+size <= p.config.MaxBufferBytes
}

// dropOldestDroppable evicts the oldest droppable part. Caller must hold mu.
func (p *BufferedPolicy) dropOldestDroppable() bool {
	i := slices.IndexFunc(p.partBuffer, func(r *types.PartRecord) bool {
		return IsDroppable(r.Part.Type)
	})
	if i < 0 {
		return false
	}
	victim := p.partBuffer[i]
	p.partBuffer = slices.Delete(p.partBuffer, i, i+1)
	p.bufferBytes -= estimatePartSize(victim)
	p.stats.setBufferSizeLocked(p.bufferBytes)
	p.stats.incPartsDroppedLocked(victim.Part.Type)
	p.logDrop(victim.Part.Type, "evicted_for_non_droppable")
	return true
}

func (p *BufferedPolicy) logDrop(partType types.PartType, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("part dropped", map[string]any{
		"part_type": string(partType),
		"reason":    reason,
		"policy":    "buffered",
	})
}

func (p *BufferedPolicy) logBufferOverflow(partType types.PartType) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow", map[string]any{
		"part_type": string(partType),
		"policy":    "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(bufferType string, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"buffer_type": bufferType,
		"error":       err.Error(),
		"policy":      "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
