package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/pithecene-io/vantage/ipc"
	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/stream"
	"github.com/pithecene-io/vantage/types"
)

// flushTimeout bounds the best-effort flush on failure paths.
const flushTimeout = 30 * time.Second

// ReplayConfig configures a single replay of a recorded part stream.
type ReplayConfig struct {
	// Meta identifies the session. ChatID, when set, mounts the page.
	Meta types.SessionMeta
	// Reader yields the recorded parts.
	Reader ipc.PartReader
	// Page receives the parts. Nil creates a fresh provider and page.
	Page *session.Page
	// Policy archives forwarded parts and snapshots. Nil uses NoopPolicy.
	Policy policy.Policy
	// Notifier publishes terminal snapshots. Optional; Replay starts and
	// closes it.
	Notifier *Notifier
	// Logger defaults to a logger with session context on stderr.
	Logger *log.Logger
	// Collector is nil-safe.
	Collector *metrics.Collector
}

// ReplayResult represents the result of a replay.
type ReplayResult struct {
	// Meta is the session identity. ChatID is the chat shown at the end.
	Meta types.SessionMeta
	// Outcome classifies how the replay ended.
	Outcome Outcome
	// Duration is the total replay duration.
	Duration time.Duration
	// PartCount is the number of parts read.
	PartCount int64
	// SnapshotCount is the number of terminal snapshots archived.
	SnapshotCount int64
	// PolicyStats is the policy statistics.
	PolicyStats policy.Stats
	// Notify is the notifier statistics.
	Notify NotifyResult
	// State is the final artifact stream state.
	State stream.State
}

// Replay feeds a recorded stream through an ingestion engine and reports
// the outcome. Errors are folded into the outcome; the returned error is
// only set for an unusable config.
//
// Flow:
//  1. Mount the page on the configured chat
//  2. Start the notifier
//  3. Run the ingestion loop (flushes at EOF)
//  4. Flush the policy best effort on failure paths
//  5. Drain the notifier and build the result
func Replay(ctx context.Context, cfg ReplayConfig) (*ReplayResult, error) {
	if cfg.Reader == nil {
		return nil, errors.New("replay requires a reader")
	}
	if cfg.Meta.SessionID == "" {
		cfg.Meta.SessionID = types.NewSessionID()
	}
	if cfg.Page == nil {
		cfg.Page = session.NewPage(session.NewProvider())
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.NewNoopPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger(&cfg.Meta)
	}

	start := time.Now()
	cfg.Collector.IncSessionOpened()
	if cfg.Meta.ChatID != "" {
		cfg.Page.Navigate(cfg.Meta.ChatID)
	}

	cfg.Logger.Info("starting replay", map[string]any{
		"chat_id": cfg.Meta.ChatID,
	})

	cfg.Notifier.Start(ctx)

	engine := NewIngestionEngine(cfg.Reader, EngineConfig{
		SessionID: cfg.Meta.SessionID,
		Page:      cfg.Page,
		Policy:    cfg.Policy,
		Notifier:  cfg.Notifier,
		Logger:    cfg.Logger,
		Collector: cfg.Collector,
	})

	ingErr := engine.Run(ctx)
	if ingErr != nil && !IsPolicyError(ingErr) {
		// Keep what was ingested before the failure.
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		if err := cfg.Policy.Flush(flushCtx); err != nil {
			cfg.Logger.Warn("policy flush failed (best effort)", map[string]any{
				"error": err.Error(),
			})
		}
		cancel()
	}

	notify := cfg.Notifier.Close()
	outcome := DetermineOutcome(ingErr)

	fields := map[string]any{
		"outcome":   outcome.Status,
		"parts":     engine.CurrentSeq(),
		"snapshots": engine.SnapshotCount(),
		"duration":  time.Since(start).String(),
	}
	if ingErr != nil {
		fields["error"] = ingErr.Error()
		cfg.Logger.Error("replay failed", fields)
	} else {
		cfg.Logger.Info("replay completed", fields)
	}

	return &ReplayResult{
		Meta: types.SessionMeta{
			SessionID: cfg.Meta.SessionID,
			ChatID:    cfg.Page.ChatID(),
		},
		Outcome:       outcome,
		Duration:      time.Since(start),
		PartCount:     engine.CurrentSeq(),
		SnapshotCount: engine.SnapshotCount(),
		PolicyStats:   cfg.Policy.Stats(),
		Notify:        notify,
		State:         cfg.Page.Provider().State(),
	}, nil
}
