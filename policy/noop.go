package policy

import (
	"context"

	"github.com/pithecene-io/vantage/types"
)

// NoopPolicy accepts everything and persists nothing.
//
// Stats keep the droppable semantics: droppable parts are counted as
// dropped, everything else as persisted.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// IngestPart accepts the part but does not persist it.
func (p *NoopPolicy) IngestPart(_ context.Context, record *types.PartRecord) error {
	p.stats.incTotalParts()
	if IsDroppable(record.Part.Type) {
		p.stats.incPartsDropped(record.Part.Type)
	} else {
		p.stats.incPartsPersisted(1)
	}
	return nil
}

// IngestSnapshot accepts the snapshot but does not persist it.
func (p *NoopPolicy) IngestSnapshot(_ context.Context, _ *types.ArtifactSnapshot) error {
	p.stats.incTotalSnapshots()
	p.stats.incSnapshotsPersisted(1)
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
