package lode

import (
	"context"

	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/types"
)

// InstrumentedSink wraps a policy.Sink and counts archive write outcomes.
// Each write batch increments archive_write_success or
// archive_write_failure on the collector.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

func (s *InstrumentedSink) record(err error) error {
	if err != nil {
		s.collector.IncArchiveWriteFailure()
	} else {
		s.collector.IncArchiveWriteSuccess()
	}
	return err
}

// WriteParts delegates to the inner sink.
func (s *InstrumentedSink) WriteParts(ctx context.Context, records []*types.PartRecord) error {
	return s.record(s.inner.WriteParts(ctx, records))
}

// WriteSnapshots delegates to the inner sink.
func (s *InstrumentedSink) WriteSnapshots(ctx context.Context, snaps []*types.ArtifactSnapshot) error {
	return s.record(s.inner.WriteSnapshots(ctx, snaps))
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
