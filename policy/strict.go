package policy

import (
	"context"

	"github.com/pithecene-io/vantage/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each part or snapshot is written immediately
//   - No drops: droppable parts are persisted too
//   - Backpressure: the caller blocks on sink latency
//   - Sink errors fail ingestion
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{
		sink:  sink,
		stats: newStatsRecorder(),
	}
}

// IngestPart writes the part immediately to the sink.
func (p *StrictPolicy) IngestPart(ctx context.Context, record *types.PartRecord) error {
	p.stats.incTotalParts()

	if err := p.sink.WriteParts(ctx, []*types.PartRecord{record}); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.incPartsPersisted(1)
	return nil
}

// IngestSnapshot writes the snapshot immediately to the sink.
func (p *StrictPolicy) IngestSnapshot(ctx context.Context, snap *types.ArtifactSnapshot) error {
	p.stats.incTotalSnapshots()

	if err := p.sink.WriteSnapshots(ctx, []*types.ArtifactSnapshot{snap}); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.incSnapshotsPersisted(1)
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
