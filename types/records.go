package types

import "time"

// LifecycleEvent names a terminal artifact transition.
type LifecycleEvent string

// Lifecycle events emitted by the ingestion engine.
const (
	EventArtifactCompleted LifecycleEvent = "artifact_completed"
	EventArtifactFailed    LifecycleEvent = "artifact_failed"
)

// PartRecord is a forwarded data part together with the session it arrived
// on. Seq is assigned by the ingestion engine and increases by one for every
// part read from the stream, forwarded or not.
type PartRecord struct {
	SessionID  string    `json:"session_id" msgpack:"session_id"`
	ChatID     string    `json:"chat_id,omitempty" msgpack:"chat_id,omitempty"`
	Seq        int64     `json:"seq" msgpack:"seq"`
	Part       DataPart  `json:"part" msgpack:"part"`
	ReceivedAt time.Time `json:"received_at" msgpack:"received_at"`
}

// ArtifactSnapshot is the state of one artifact at a terminal transition.
// Snapshots are what the archive stores and the adapters publish.
type ArtifactSnapshot struct {
	SessionID  string         `json:"session_id" msgpack:"session_id"`
	ChatID     string         `json:"chat_id,omitempty" msgpack:"chat_id,omitempty"`
	Event      LifecycleEvent `json:"event" msgpack:"event"`
	Seq        int64          `json:"seq" msgpack:"seq"`
	Artifact   Artifact       `json:"artifact" msgpack:"artifact"`
	RecordedAt time.Time      `json:"recorded_at" msgpack:"recorded_at"`
}

// EventFor returns the lifecycle event for a terminal status, or false if
// the status is not terminal.
func EventFor(status ArtifactStatus) (LifecycleEvent, bool) {
	switch status {
	case StatusComplete:
		return EventArtifactCompleted, true
	case StatusError:
		return EventArtifactFailed, true
	default:
		return "", false
	}
}
