package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/types"
)

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// FlushCount triggers a flush after N parts accumulate.
	// Zero disables count-based flushing.
	FlushCount int

	// FlushInterval triggers a flush every interval.
	// Zero disables interval-based flushing.
	FlushInterval time.Duration

	// Logger is optional.
	Logger *log.Logger
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	FlushTriggerCount       FlushTrigger = "count"
	FlushTriggerInterval    FlushTrigger = "interval"
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when StreamingConfig is invalid.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// StreamingPolicy implements continuous persistence with batched writes.
//
// Nothing is dropped. Records accumulate in memory and are flushed when any
// trigger fires; snapshots are written before parts. On flush failure the
// batch is restored ahead of anything ingested meanwhile and retried on the
// next trigger.
//
// mu guards buffers and stats; flushMu serializes flushes so the interval
// goroutine and the count trigger never write concurrently.
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	mu          sync.Mutex
	partBuffer  []*types.PartRecord
	snapBuffer  []*types.ArtifactSnapshot
	bufferBytes int64
	stats       *statsRecorder

	flushMu sync.Mutex

	// Guarded by mu.
	flushByCount       int64
	flushByInterval    int64
	flushByTermination int64

	stopCh  chan struct{}
	stopped bool
}

// NewStreamingPolicy creates a new streaming policy.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}

	p := &StreamingPolicy{
		sink:       sink,
		config:     config,
		logger:     config.Logger,
		partBuffer: make([]*types.PartRecord, 0, 128),
		stats:      newStatsRecorder(),
		stopCh:     make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		go p.intervalLoop()
	}
	return p, nil
}

// IngestPart appends the part and flushes if the count threshold is reached.
func (p *StreamingPolicy) IngestPart(ctx context.Context, record *types.PartRecord) error {
	p.mu.Lock()
	p.stats.incTotalPartsLocked()
	p.partBuffer = append(p.partBuffer, record)
	p.bufferBytes += estimatePartSize(record)
	p.stats.setBufferSizeLocked(p.bufferBytes)
	shouldFlush := p.config.FlushCount > 0 && len(p.partBuffer) >= p.config.FlushCount
	p.mu.Unlock()

	if shouldFlush {
		return p.triggerFlush(ctx, FlushTriggerCount)
	}
	return nil
}

// IngestSnapshot appends the snapshot.
func (p *StreamingPolicy) IngestSnapshot(_ context.Context, snap *types.ArtifactSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalSnapshotsLocked()
	p.snapBuffer = append(p.snapBuffer, snap)
	p.bufferBytes += estimateSnapshotSize(snap)
	p.stats.setBufferSizeLocked(p.bufferBytes)
	return nil
}

// Flush flushes all buffered data.
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.triggerFlush(ctx, FlushTriggerTermination)
}

// triggerFlush swaps buffers under mu, writes outside mu, and restores the
// batch on failure.
func (p *StreamingPolicy) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	switch trigger {
	case FlushTriggerCount:
		p.flushByCount++
	case FlushTriggerInterval:
		p.flushByInterval++
	case FlushTriggerTermination:
		p.flushByTermination++
	}
	p.stats.incFlushLocked()

	parts := p.partBuffer
	snaps := p.snapBuffer
	if len(parts) == 0 && len(snaps) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.partBuffer = make([]*types.PartRecord, 0, 128)
	p.snapBuffer = nil
	p.recalculateBufferBytes()
	p.mu.Unlock()

	if len(snaps) > 0 {
		if err := p.sink.WriteSnapshots(ctx, snaps); err != nil {
			p.mu.Lock()
			p.stats.incErrorsLocked()
			p.partBuffer = append(parts, p.partBuffer...)
			p.snapBuffer = append(snaps, p.snapBuffer...)
			p.recalculateBufferBytes()
			p.mu.Unlock()
			p.logFlushFailure("snapshots", trigger, err)
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
			p.partBuffer = append(parts, p.partBuffer...)
			p.recalculateBufferBytes()
			p.mu.Unlock()
			p.logFlushFailure("parts", trigger, err)
			return err
		}
		p.mu.Lock()
		p.stats.incPartsPersistedLocked(int64(len(parts)))
		p.mu.Unlock()
	}

	p.logFlush(trigger, len(parts), len(snaps))
	return nil
}

// Close stops the interval goroutine, flushes, and closes the sink.
func (p *StreamingPolicy) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()

	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns an atomic snapshot of policy statistics.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(p.bufferBytes)
}

// FlushTriggerStats returns per-trigger flush counts.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[FlushTrigger]int64{
		FlushTriggerCount:       p.flushByCount,
		FlushTriggerInterval:    p.flushByInterval,
		FlushTriggerTermination: p.flushByTermination,
	}
}

func (p *StreamingPolicy) intervalLoop() {
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			hasData := len(p.partBuffer) > 0 || len(p.snapBuffer) > 0
			p.mu.Unlock()

			if hasData {
				// errors are logged in triggerFlush; the batch stays buffered
				_ = p.triggerFlush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// recalculateBufferBytes recomputes bufferBytes. Caller must hold mu.
func (p *StreamingPolicy) recalculateBufferBytes() {
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

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, parts, snaps int) {
	if p.logger == nil {
		return
	}
	p.logger.Info("streaming flush", map[string]any{
		"trigger":   string(trigger),
		"parts":     parts,
		"snapshots": snaps,
		"policy":    "streaming",
	})
}

func (p *StreamingPolicy) logFlushFailure(bufferType string, trigger FlushTrigger, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("streaming flush failed", map[string]any{
		"buffer_type": bufferType,
		"trigger":     string(trigger),
		"error":       err.Error(),
		"policy":      "streaming",
	})
}

var _ Policy = (*StreamingPolicy)(nil)
