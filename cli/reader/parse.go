package reader

import "github.com/pithecene-io/vantage/types"

// BuildHistory summarizes archived snapshots, keeping their order.
// Snapshots are expected to be one per artifact id, as lode.QueryHistory
// returns them; a repeated id is counted again.
func BuildHistory(sessionID string, snaps []types.ArtifactSnapshot) *HistoryResponse {
	resp := &HistoryResponse{
		SessionID: sessionID,
		ByType:    make(map[string]int),
		Entries:   make([]HistoryEntry, 0, len(snaps)),
		Artifacts: make([]types.Artifact, 0, len(snaps)),
	}
	for _, s := range snaps {
		resp.Entries = append(resp.Entries, entryOf(s))
		resp.Artifacts = append(resp.Artifacts, s.Artifact)
		resp.ByType[s.Artifact.Type]++
		switch s.Artifact.Status {
		case types.StatusComplete:
			resp.Completed++
		case types.StatusError:
			resp.Failed++
		}
	}
	resp.Total = len(resp.Entries)
	return resp
}

func entryOf(s types.ArtifactSnapshot) HistoryEntry {
	return HistoryEntry{
		ArtifactID: s.Artifact.ID,
		Type:       s.Artifact.Type,
		Title:      titleOf(s.Artifact.Payload),
		Status:     s.Artifact.Status,
		Event:      s.Event,
		ChatID:     s.ChatID,
		Seq:        s.Seq,
		RecordedAt: s.RecordedAt,
		Error:      s.Artifact.Error,
	}
}

// titleOf reads the conventional "title" field of a record payload.
// Archived payloads decode as map[string]any or, from msgpack, map[any]any.
func titleOf(payload any) string {
	switch rec := payload.(type) {
	case map[string]any:
		s, _ := rec["title"].(string)
		return s
	case map[any]any:
		s, _ := rec["title"].(string)
		return s
	default:
		return ""
	}
}
