package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/policy"
)

// ReplayReport is the structured JSON report written by --report.
type ReplayReport struct {
	SessionID  string        `json:"session_id"`
	ChatID     string        `json:"chat_id,omitempty"`
	Outcome    OutcomeStatus `json:"outcome"`
	Message    string        `json:"message"`
	ExitCode   int           `json:"exit_code"`
	DurationMs int64         `json:"duration_ms"`
	PartCount  int64         `json:"part_count"`

	Policy    *ReportPolicy     `json:"policy"`
	Artifacts *ReportArtifacts  `json:"artifacts"`
	Notify    *NotifyResult     `json:"notify"`
	Metrics   *metrics.Snapshot `json:"metrics"`
}

// ReportPolicy holds policy stats in the report.
type ReportPolicy struct {
	Name               string           `json:"name"`
	PartsReceived      int64            `json:"parts_received"`
	PartsPersisted     int64            `json:"parts_persisted"`
	PartsDropped       int64            `json:"parts_dropped"`
	SnapshotsPersisted int64            `json:"snapshots_persisted"`
	FlushTriggers      map[string]int64 `json:"flush_triggers,omitempty"`
}

// ReportArtifacts summarizes the final artifact stream state.
type ReportArtifacts struct {
	Snapshots int64    `json:"snapshots"`
	History   int      `json:"history"`
	Types     []string `json:"types"`
	CurrentID string   `json:"current_id,omitempty"`
}

// BuildReplayReport composes a ReplayReport from a ReplayResult and metrics
// snapshot. flushTriggers is only set for the streaming policy.
func BuildReplayReport(result *ReplayResult, snap metrics.Snapshot, policyName string, flushTriggers map[policy.FlushTrigger]int64) *ReplayReport {
	report := &ReplayReport{
		SessionID:  result.Meta.SessionID,
		ChatID:     result.Meta.ChatID,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		ExitCode:   result.Outcome.ExitCode(),
		DurationMs: result.Duration.Milliseconds(),
		PartCount:  result.PartCount,
		Policy: &ReportPolicy{
			Name:               policyName,
			PartsReceived:      result.PolicyStats.TotalParts,
			PartsPersisted:     result.PolicyStats.PartsPersisted,
			PartsDropped:       result.PolicyStats.PartsDropped,
			SnapshotsPersisted: result.PolicyStats.SnapshotsPersisted,
		},
		Artifacts: &ReportArtifacts{
			Snapshots: result.SnapshotCount,
			History:   len(result.State.History),
			Types:     result.State.Types,
		},
		Notify:  &result.Notify,
		Metrics: &snap,
	}

	if result.State.Current != nil {
		report.Artifacts.CurrentID = result.State.Current.ID
	}
	if len(flushTriggers) > 0 {
		report.Policy.FlushTriggers = make(map[string]int64, len(flushTriggers))
		for k, v := range flushTriggers {
			report.Policy.FlushTriggers[string(k)] = v
		}
	}

	return report
}

// WriteReplayReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteReplayReport(report *ReplayReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeReplayReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func writeReplayReportTo(report *ReplayReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *ReplayReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// TableSummary implements render.Table.
func (r *ReplayReport) TableSummary() [][2]string {
	summary := [][2]string{
		{"session", r.SessionID},
		{"chat", r.ChatID},
		{"outcome", fmt.Sprintf("%s (exit %d)", r.Outcome, r.ExitCode)},
		{"message", r.Message},
		{"duration", fmt.Sprintf("%dms", r.DurationMs)},
	}
	if r.Artifacts != nil && r.Artifacts.CurrentID != "" {
		summary = append(summary, [2]string{"current", r.Artifacts.CurrentID})
	}
	return summary
}

// TableHeader implements render.Table.
func (r *ReplayReport) TableHeader() []string {
	return []string{"COUNTER", "VALUE"}
}

// TableRows implements render.Table.
func (r *ReplayReport) TableRows() [][]string {
	rows := [][]string{{"parts", strconv.FormatInt(r.PartCount, 10)}}
	add := func(name string, v int64) {
		rows = append(rows, []string{name, strconv.FormatInt(v, 10)})
	}
	if a := r.Artifacts; a != nil {
		add("snapshots", a.Snapshots)
		add("history", int64(a.History))
	}
	if p := r.Policy; p != nil {
		add("policy."+p.Name+".persisted", p.PartsPersisted)
		add("policy."+p.Name+".dropped", p.PartsDropped)
		for _, k := range slices.Sorted(maps.Keys(p.FlushTriggers)) {
			add("policy.flush."+k, p.FlushTriggers[k])
		}
	}
	if m := r.Metrics; m != nil {
		add("stale_dropped", m.StaleDropped)
		add("decode_errors", m.DecodeErrors)
		add("archive_write_failures", m.ArchiveWriteFailure)
	}
	if n := r.Notify; n != nil && n.Received > 0 {
		add("notify.published", n.Published)
		add("notify.failed", n.PublishFailed)
		add("notify.files", n.FilesWritten)
	}
	return rows
}
