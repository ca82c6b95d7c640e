package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pithecene-io/vantage/ipc"
	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/stream"
	"github.com/pithecene-io/vantage/types"
)

// IngestionError classifies ingestion errors for outcome determination.
type IngestionError struct {
	// Kind indicates whether this is a stream/frame error or a policy error.
	Kind IngestionErrorKind
	// Err is the underlying error.
	Err error
}

// IngestionErrorKind classifies ingestion errors.
type IngestionErrorKind int

const (
	// IngestionErrorStream indicates malformed framing or a broken reader.
	IngestionErrorStream IngestionErrorKind = iota
	// IngestionErrorPolicy indicates the archive policy rejected a record.
	IngestionErrorPolicy
	// IngestionErrorCanceled indicates context cancellation.
	IngestionErrorCanceled
)

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// IsPolicyError returns true if the error is a policy failure.
func IsPolicyError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorPolicy
	}
	return false
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorCanceled
	}
	return false
}

// IsStreamError returns true if the error is a stream/frame error.
func IsStreamError(err error) bool {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestionErrorStream
	}
	return false
}

// EngineConfig wires an ingestion engine to one session.
type EngineConfig struct {
	// SessionID keys archived records.
	SessionID string
	// Page owns the session's provider and the reset trigger.
	Page *session.Page
	// Policy receives forwarded parts and terminal artifact snapshots.
	// Nil uses a NoopPolicy.
	Policy policy.Policy
	// Notifier publishes terminal snapshots. Optional.
	Notifier *Notifier
	// Logger defaults to a nop logger.
	Logger *log.Logger
	// Collector is nil-safe.
	Collector *metrics.Collector
}

// IngestionEngine routes inbound data parts for one session.
//
//   - Every part gets the next sequence number (1, 2, 3...), forwarded or not
//   - session-navigate control parts flush the policy, then navigate the page
//   - Artifact parts are decoded and dispatched to the session provider
//   - complete and error transitions are archived and published as snapshots
//   - Other parts are forwarded to the policy unless transient
//   - Undecodable parts are skipped; broken framing is fatal (no resync)
type IngestionEngine struct {
	reader    ipc.PartReader
	sessionID string
	page      *session.Page
	policy    policy.Policy
	notifier  *Notifier
	logger    *log.Logger
	collector *metrics.Collector
	now       func() time.Time

	mu        sync.Mutex
	seq       int64
	snapshots int64
}

// NewIngestionEngine creates an engine reading from reader. A nil reader
// is allowed for engines fed through Ingest only.
func NewIngestionEngine(reader ipc.PartReader, cfg EngineConfig) *IngestionEngine {
	if cfg.Page == nil {
		cfg.Page = session.NewPage(session.NewProvider())
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.NewNoopPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &IngestionEngine{
		reader:    reader,
		sessionID: cfg.SessionID,
		page:      cfg.Page,
		policy:    cfg.Policy,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		now:       time.Now,
	}
}

// Run runs the ingestion loop until EOF or fatal error. The policy is
// flushed at EOF.
// Returns:
//   - nil: stream ended cleanly (EOF)
//   - *IngestionError with Kind=IngestionErrorStream: frame/stream error
//   - *IngestionError with Kind=IngestionErrorPolicy: policy failure
//   - *IngestionError with Kind=IngestionErrorCanceled: context canceled
func (e *IngestionEngine) Run(ctx context.Context) error {
	if e.reader == nil {
		return &IngestionError{Kind: IngestionErrorStream, Err: errors.New("ingestion engine has no reader")}
	}

	for {
		select {
		case <-ctx.Done():
			return &IngestionError{
				Kind: IngestionErrorCanceled,
				Err:  ctx.Err(),
			}
		default:
		}

		part, err := e.reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return e.Flush(ctx)
			}
			if !ipc.IsFatalFrameError(err) {
				e.logger.Warn("skipping undecodable part", map[string]any{
					"error": err.Error(),
				})
				e.collector.IncDecodeErrors()
				continue
			}

			e.logger.Error("frame error", map[string]any{
				"error": err.Error(),
			})
			e.collector.IncDecodeErrors()
			return &IngestionError{
				Kind: IngestionErrorStream,
				Err:  fmt.Errorf("frame error: %w", err),
			}
		}

		if err := e.Ingest(ctx, *part); err != nil {
			return err
		}
	}
}

// Ingest routes a single part. It is safe for concurrent use; parts are
// sequenced in call order.
func (e *IngestionEngine) Ingest(ctx context.Context, part types.DataPart) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	e.collector.IncPartReceived()

	if part.Type.IsControl() {
		return e.processControl(ctx, part)
	}
	ch, ok := e.page.Provider().Process(part)
	if !ok {
		return e.forward(ctx, part)
	}
	return e.processArtifact(ctx, part, ch)
}

// processControl handles session-navigate parts.
func (e *IngestionEngine) processControl(ctx context.Context, part types.DataPart) error {
	chatID := chatIDOf(part.Data)
	if chatID == "" {
		e.logger.Warn("ignoring navigate part without chatId", map[string]any{
			"seq": e.seq,
		})
		return nil
	}

	// Parts of the previous chat are archived under its chat id.
	if err := e.flushLocked(ctx); err != nil {
		return err
	}

	if e.page.Navigate(chatID) {
		e.collector.IncReset()
		e.logger.Info("chat changed, artifact state reset", map[string]any{
			"chat_id": chatID,
			"seq":     e.seq,
		})
	}
	return nil
}

// processArtifact records a dispatched artifact part and archives terminal
// transitions.
func (e *IngestionEngine) processArtifact(ctx context.Context, part types.DataPart, ch session.Change) error {
	action := ch.Action
	e.collector.RecordAction(action.Kind.String(), action.ArtifactType)

	if !ch.Applied {
		e.logger.Debug("stale artifact part dropped", map[string]any{
			"type":        part.Type,
			"artifact_id": action.ID,
			"seq":         e.seq,
		})
		e.collector.IncStaleDropped()
		return nil
	}

	if action.Kind != stream.ActionComplete && action.Kind != stream.ActionError {
		return nil
	}
	if ch.Next.Current == nil {
		return nil
	}

	art := ch.Next.Current.Clone()
	event, ok := types.EventFor(art.Status)
	if !ok {
		return nil
	}

	snap := &types.ArtifactSnapshot{
		SessionID:  e.sessionID,
		ChatID:     e.page.ChatID(),
		Event:      event,
		Seq:        e.seq,
		Artifact:   art,
		RecordedAt: e.now().UTC(),
	}

	if err := e.policy.IngestSnapshot(ctx, snap); err != nil {
		e.logger.Error("policy snapshot ingestion failed", map[string]any{
			"artifact_id": art.ID,
			"event":       event,
			"seq":         e.seq,
			"error":       err.Error(),
		})
		return &IngestionError{
			Kind: IngestionErrorPolicy,
			Err:  fmt.Errorf("policy failure: %w", err),
		}
	}
	e.snapshots++

	e.logger.Debug("artifact snapshot recorded", map[string]any{
		"artifact_id":   art.ID,
		"artifact_type": art.Type,
		"event":         event,
		"seq":           e.seq,
	})

	e.notifier.Submit(*snap)
	return nil
}

// forward hands a non-artifact part to the policy.
func (e *IngestionEngine) forward(ctx context.Context, part types.DataPart) error {
	if part.Transient {
		return nil
	}

	record := &types.PartRecord{
		SessionID:  e.sessionID,
		ChatID:     e.page.ChatID(),
		Seq:        e.seq,
		Part:       part,
		ReceivedAt: e.now().UTC(),
	}
	if err := e.policy.IngestPart(ctx, record); err != nil {
		e.logger.Error("policy ingestion failed", map[string]any{
			"type":  part.Type,
			"seq":   e.seq,
			"error": err.Error(),
		})
		return &IngestionError{
			Kind: IngestionErrorPolicy,
			Err:  fmt.Errorf("policy failure: %w", err),
		}
	}
	e.collector.IncPartForwarded()
	return nil
}

// Flush flushes the policy.
func (e *IngestionEngine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked(ctx)
}

func (e *IngestionEngine) flushLocked(ctx context.Context) error {
	if err := e.policy.Flush(ctx); err != nil {
		e.logger.Error("policy flush failed", map[string]any{
			"seq":   e.seq,
			"error": err.Error(),
		})
		return &IngestionError{
			Kind: IngestionErrorPolicy,
			Err:  fmt.Errorf("policy flush failure: %w", err),
		}
	}
	return nil
}

// CurrentSeq returns the sequence number of the last ingested part.
func (e *IngestionEngine) CurrentSeq() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// SnapshotCount returns the number of terminal snapshots recorded.
func (e *IngestionEngine) SnapshotCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshots
}

// Page returns the page the engine drives.
func (e *IngestionEngine) Page() *session.Page {
	return e.page
}

// chatIDOf reads chatId from a navigate part's data record.
func chatIDOf(data any) string {
	switch rec := data.(type) {
	case map[string]any:
		s, _ := rec["chatId"].(string)
		return s
	case map[any]any:
		s, _ := rec["chatId"].(string)
		return s
	case types.NavigatePayload:
		return rec.ChatID
	case *types.NavigatePayload:
		if rec == nil {
			return ""
		}
		return rec.ChatID
	default:
		return ""
	}
}
