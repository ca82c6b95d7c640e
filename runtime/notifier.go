package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pithecene-io/vantage/adapter"
	"github.com/pithecene-io/vantage/lode"
	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/types"
)

// Default notifier sizing.
const (
	DefaultNotifyParallel = 1
	DefaultNotifyQueue    = 256
)

// NotifierConfig configures the lifecycle notifier.
type NotifierConfig struct {
	// Parallel is the number of delivery workers. Deliveries are in order
	// only when Parallel is 1.
	Parallel int
	// QueueSize bounds pending snapshots. Submissions beyond it are skipped.
	QueueSize int
	// Adapter publishes lifecycle events. Optional.
	Adapter adapter.Adapter
	// Files receives a rendered sidecar per snapshot. Optional.
	Files lode.FileWriter
	// Render draws an artifact for the sidecar file. Required with Files.
	Render func(types.Artifact) string
	// Logger defaults to a nop logger.
	Logger *log.Logger
	// Collector is nil-safe.
	Collector *metrics.Collector
}

// NotifyResult aggregates delivery statistics.
type NotifyResult struct {
	// Received is the number of submitted snapshots.
	Received int64 `json:"received"`
	// Skipped is the number of snapshots dropped because the queue was full
	// or the notifier was closed.
	Skipped int64 `json:"skipped"`
	// Published is the number of events the adapter accepted.
	Published int64 `json:"published"`
	// PublishFailed is the number of events that exhausted retries.
	PublishFailed int64 `json:"publish_failed"`
	// FilesWritten is the number of sidecar files written.
	FilesWritten int64 `json:"files_written"`
	// FilesFailed is the number of sidecar writes that failed.
	FilesFailed int64 `json:"files_failed"`
}

// Notifier delivers terminal artifact snapshots to the adapter and the
// sidecar file writer on a bounded worker pool, off the ingestion path.
type Notifier struct {
	config NotifierConfig
	queue  chan types.ArtifactSnapshot
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool

	received      atomic.Int64
	skipped       atomic.Int64
	published     atomic.Int64
	publishFailed atomic.Int64
	filesWritten  atomic.Int64
	filesFailed   atomic.Int64
}

// NewNotifier creates a notifier. Call Start before submitting.
func NewNotifier(cfg NotifierConfig) (*Notifier, error) {
	if cfg.Files != nil && cfg.Render == nil {
		return nil, fmt.Errorf("notifier: sidecar files require a renderer")
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = DefaultNotifyParallel
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultNotifyQueue
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Notifier{
		config: cfg,
		queue:  make(chan types.ArtifactSnapshot, cfg.QueueSize),
	}, nil
}

// Start launches the worker pool. Workers stop when Close is called or ctx
// ends; deliveries in flight observe ctx.
func (n *Notifier) Start(ctx context.Context) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true

	for range n.config.Parallel {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			for {
				select {
				case snap, ok := <-n.queue:
					if !ok {
						return
					}
					n.deliver(ctx, snap)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Submit enqueues a snapshot without blocking. It returns false if the
// snapshot was skipped. A nil notifier skips everything.
func (n *Notifier) Submit(snap types.ArtifactSnapshot) bool {
	if n == nil {
		return false
	}
	n.received.Add(1)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.skipped.Add(1)
		return false
	}

	select {
	case n.queue <- snap:
		return true
	default:
		n.skipped.Add(1)
		n.config.Logger.Warn("notify queue full, snapshot skipped", map[string]any{
			"artifact_id": snap.Artifact.ID,
			"event":       snap.Event,
		})
		return false
	}
}

// Close stops accepting snapshots, waits for queued deliveries and
// returns the final statistics. Safe to call more than once.
func (n *Notifier) Close() NotifyResult {
	if n == nil {
		return NotifyResult{}
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	n.wg.Wait()
	return n.Results()
}

// Results returns the current delivery statistics.
func (n *Notifier) Results() NotifyResult {
	if n == nil {
		return NotifyResult{}
	}
	return NotifyResult{
		Received:      n.received.Load(),
		Skipped:       n.skipped.Load(),
		Published:     n.published.Load(),
		PublishFailed: n.publishFailed.Load(),
		FilesWritten:  n.filesWritten.Load(),
		FilesFailed:   n.filesFailed.Load(),
	}
}

// deliver publishes one snapshot and writes its sidecar. Failures are
// logged and counted, never returned: notifications do not affect the
// session outcome.
func (n *Notifier) deliver(ctx context.Context, snap types.ArtifactSnapshot) {
	if a := n.config.Adapter; a != nil {
		if err := a.Publish(ctx, adapter.NewArtifactEvent(&snap)); err != nil {
			n.publishFailed.Add(1)
			n.config.Collector.IncNotifyFailure()
			n.config.Logger.Warn("lifecycle notification failed", map[string]any{
				"artifact_id": snap.Artifact.ID,
				"event":       snap.Event,
				"error":       err.Error(),
			})
		} else {
			n.published.Add(1)
			n.config.Collector.IncNotifySuccess()
		}
	}

	if n.config.Files != nil {
		filename := snap.Artifact.ID + ".txt"
		data := []byte(n.config.Render(snap.Artifact))
		if err := n.config.Files.PutFile(ctx, snap.SessionID, filename, "text/plain", data); err != nil {
			n.filesFailed.Add(1)
			n.config.Logger.Warn("sidecar write failed", map[string]any{
				"artifact_id": snap.Artifact.ID,
				"filename":    filename,
				"error":       err.Error(),
			})
			return
		}
		n.filesWritten.Add(1)
	}
}
