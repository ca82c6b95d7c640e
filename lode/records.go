package lode

import (
	"encoding/json"
	"time"

	"github.com/pithecene-io/vantage/types"
)

// RecordKind discriminator values.
const (
	RecordKindPart     = "part"
	RecordKindArtifact = "artifact"
)

// toPartRecordMap converts a forwarded part to its storage form.
func toPartRecordMap(r *types.PartRecord, cfg Config, now time.Time) map[string]any {
	ts := r.ReceivedAt
	if ts.IsZero() {
		ts = now
	}
	rec := map[string]any{
		"record_kind": RecordKindPart,
		"session_id":  r.SessionID,
		"day":         DeriveDay(ts),
		"seq":         r.Seq,
		"part_type":   string(r.Part.Type),
		"ts":          ts.UTC().Format(time.RFC3339Nano),
		"policy":      cfg.Policy,
	}
	if r.ChatID != "" {
		rec["chat_id"] = r.ChatID
	}
	if r.Part.ID != "" {
		rec["part_id"] = r.Part.ID
	}
	if r.Part.Data != nil {
		rec["data"] = r.Part.Data
	}
	return rec
}

// toSnapshotRecordMap converts an artifact snapshot to its storage form.
func toSnapshotRecordMap(s *types.ArtifactSnapshot, cfg Config, now time.Time) map[string]any {
	ts := s.RecordedAt
	if ts.IsZero() {
		ts = now
	}
	rec := map[string]any{
		"record_kind":   RecordKindArtifact,
		"session_id":    s.SessionID,
		"day":           DeriveDay(ts),
		"seq":           s.Seq,
		"event":         string(s.Event),
		"artifact_id":   s.Artifact.ID,
		"artifact_type": s.Artifact.Type,
		"status":        string(s.Artifact.Status),
		"ts":            ts.UTC().Format(time.RFC3339Nano),
		"policy":        cfg.Policy,
	}
	if s.ChatID != "" {
		rec["chat_id"] = s.ChatID
	}
	if s.Artifact.Payload != nil {
		rec["payload"] = s.Artifact.Payload
	}
	if s.Artifact.Error != "" {
		rec["error"] = s.Artifact.Error
	}
	return rec
}

// snapshotFromRecord is the inverse of toSnapshotRecordMap for records read
// back through the JSONL codec. It returns false for non-artifact records
// and records without an artifact id.
func snapshotFromRecord(rec map[string]any) (types.ArtifactSnapshot, bool) {
	if rec["record_kind"] != RecordKindArtifact {
		return types.ArtifactSnapshot{}, false
	}
	id := toString(rec["artifact_id"])
	if id == "" {
		return types.ArtifactSnapshot{}, false
	}

	snap := types.ArtifactSnapshot{
		SessionID: toString(rec["session_id"]),
		ChatID:    toString(rec["chat_id"]),
		Event:     types.LifecycleEvent(toString(rec["event"])),
		Seq:       toInt64(rec["seq"]),
		Artifact: types.Artifact{
			ID:      id,
			Type:    toString(rec["artifact_type"]),
			Payload: rec["payload"],
			Status:  types.ArtifactStatus(toString(rec["status"])),
			Error:   toString(rec["error"]),
		},
	}
	if ts, err := time.Parse(time.RFC3339Nano, toString(rec["ts"])); err == nil {
		snap.RecordedAt = ts
	}
	return snap, true
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 accepts the numeric forms a JSON round trip can produce.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
