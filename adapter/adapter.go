// Package adapter defines the notification boundary for artifact lifecycle
// events.
//
// Adapters publish a notification whenever an artifact completes or fails.
// Delivery runs on the runtime notifier, off the ingestion path; the
// command that builds an adapter closes it.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/vantage/types"
)

// ArtifactEvent is the payload published on a terminal artifact transition.
type ArtifactEvent struct {
	ContractVersion string `json:"contract_version"`
	// EventType is artifact_completed or artifact_failed.
	EventType    string `json:"event_type"`
	SessionID    string `json:"session_id"`
	ChatID       string `json:"chat_id,omitempty"`
	ArtifactID   string `json:"artifact_id"`
	ArtifactType string `json:"artifact_type"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	// Title is the payload title, when the payload carries one.
	Title string `json:"title,omitempty"`
	Seq   int64  `json:"seq"`
	// Timestamp is RFC 3339 in UTC.
	Timestamp string `json:"timestamp"`
}

// NewArtifactEvent builds the notification for a snapshot.
func NewArtifactEvent(snap *types.ArtifactSnapshot) *ArtifactEvent {
	ts := snap.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	ev := &ArtifactEvent{
		ContractVersion: types.ContractVersion,
		EventType:       string(snap.Event),
		SessionID:       snap.SessionID,
		ChatID:          snap.ChatID,
		ArtifactID:      snap.Artifact.ID,
		ArtifactType:    snap.Artifact.Type,
		Status:          string(snap.Artifact.Status),
		Error:           snap.Artifact.Error,
		Seq:             snap.Seq,
		Timestamp:       ts.UTC().Format(time.RFC3339),
	}
	if rec, ok := snap.Artifact.Payload.(map[string]any); ok {
		if title, ok := rec["title"].(string); ok {
			ev.Title = title
		}
	}
	return ev
}

// Adapter publishes artifact lifecycle events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ArtifactEvent) error

	// Close releases adapter resources.
	Close() error
}
