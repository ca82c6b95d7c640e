package reader

import (
	"strconv"
	"time"

	"github.com/pithecene-io/vantage/types"
)

// SessionItem is one row of a session listing.
type SessionItem struct {
	SessionID string `json:"session_id" yaml:"session_id"`
}

// HistoryEntry is one archived artifact, in its latest archived state.
type HistoryEntry struct {
	ArtifactID string               `json:"artifact_id" yaml:"artifact_id"`
	Type       string               `json:"type" yaml:"type"`
	Title      string               `json:"title,omitempty" yaml:"title,omitempty"`
	Status     types.ArtifactStatus `json:"status" yaml:"status"`
	Event      types.LifecycleEvent `json:"event" yaml:"event"`
	ChatID     string               `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
	Seq        int64                `json:"seq" yaml:"seq"`
	RecordedAt time.Time            `json:"recorded_at" yaml:"recorded_at"`
	Error      string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// HistoryResponse summarizes a session's archive.
type HistoryResponse struct {
	SessionID string         `json:"session_id" yaml:"session_id"`
	Total     int            `json:"total" yaml:"total"`
	Completed int            `json:"completed" yaml:"completed"`
	Failed    int            `json:"failed" yaml:"failed"`
	ByType    map[string]int `json:"by_type" yaml:"by_type"`
	Entries   []HistoryEntry `json:"entries" yaml:"entries"`
	// Artifacts holds the full archived artifacts, in entry order, for
	// renderers that draw payloads.
	Artifacts []types.Artifact `json:"-" yaml:"-"`
}

// TableSummary implements render.Table.
func (h *HistoryResponse) TableSummary() [][2]string {
	return [][2]string{
		{"session", h.SessionID},
		{"artifacts", strconv.Itoa(h.Total)},
		{"completed", strconv.Itoa(h.Completed)},
		{"failed", strconv.Itoa(h.Failed)},
	}
}

// TableHeader implements render.Table.
func (h *HistoryResponse) TableHeader() []string {
	return []string{"ID", "TYPE", "TITLE", "STATUS", "SEQ", "RECORDED"}
}

// TableRows implements render.Table.
func (h *HistoryResponse) TableRows() [][]string {
	rows := make([][]string, 0, len(h.Entries))
	for _, e := range h.Entries {
		status := string(e.Status)
		if e.Error != "" {
			status += ": " + e.Error
		}
		rows = append(rows, []string{
			e.ArtifactID,
			e.Type,
			e.Title,
			status,
			strconv.FormatInt(e.Seq, 10),
			e.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}
