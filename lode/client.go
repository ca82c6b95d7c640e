package lode

import (
	"context"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/types"
)

// LodeClient is a Lode-backed policy.Sink.
type LodeClient struct {
	dataset lode.Dataset
	config  Config
	now     func() time.Time

	// Sidecar files bypass the dataset and write to the store directly.
	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClient creates a client with filesystem storage rooted at root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newDataset(cfg.dataset(), factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.dataset())
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		now:          time.Now,
		storeFactory: factory,
	}
}

// Dataset returns the underlying dataset for queries.
func (c *LodeClient) Dataset() lode.Dataset {
	return c.dataset
}

// WriteParts writes forwarded parts with record_kind=part.
func (c *LodeClient) WriteParts(ctx context.Context, records []*types.PartRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := c.now()
	rows := make([]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, toPartRecordMap(r, c.config, now))
	}
	if _, err := c.dataset.Write(ctx, rows, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.dataset()+"/parts")
	}
	return nil
}

// WriteSnapshots writes artifact snapshots with record_kind=artifact.
func (c *LodeClient) WriteSnapshots(ctx context.Context, snaps []*types.ArtifactSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	now := c.now()
	rows := make([]any, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, toSnapshotRecordMap(s, c.config, now))
	}
	if _, err := c.dataset.Write(ctx, rows, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.config.dataset()+"/artifacts")
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

var _ policy.Sink = (*LodeClient)(nil)
