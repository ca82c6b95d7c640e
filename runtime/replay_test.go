package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/types"
)

func TestReplay_Success(t *testing.T) {
	sink := policy.NewStubSink()
	collector := metrics.NewCollector("strict", "memory", "stub")
	ad := &recordingAdapter{}
	notifier, err := NewNotifier(NotifierConfig{Adapter: ad, Collector: collector})
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}

	result, err := Replay(t.Context(), ReplayConfig{
		Meta:      types.SessionMeta{SessionID: "s1", ChatID: "c1"},
		Reader:    jsonlReader(t, lineStreamA1, lineSources, lineCompleteA1, lineNavigateC2),
		Policy:    policy.NewStrictPolicy(sink),
		Notifier:  notifier,
		Logger:    log.NewNop(),
		Collector: collector,
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if result.Outcome.Status != OutcomeSuccess || result.Outcome.ExitCode() != ExitCodeOK {
		t.Errorf("outcome = %+v", result.Outcome)
	}
	if result.Meta.ChatID != "c2" {
		t.Errorf("final chat = %q, want c2", result.Meta.ChatID)
	}
	if result.PartCount != 4 || result.SnapshotCount != 1 {
		t.Errorf("parts = %d, snapshots = %d", result.PartCount, result.SnapshotCount)
	}
	if result.Notify.Published != 1 {
		t.Errorf("notify = %+v", result.Notify)
	}
	if result.State.Current != nil {
		t.Error("navigation to c2 did not reset state")
	}
	if result.PolicyStats.SnapshotsPersisted != 1 || result.PolicyStats.PartsPersisted != 1 {
		t.Errorf("policy stats = %+v", result.PolicyStats)
	}
	if sink.WrittenSnapshots[0].ChatID != "c1" {
		t.Errorf("snapshot chat = %q, want c1", sink.WrittenSnapshots[0].ChatID)
	}
	if collector.Snapshot().SessionsOpened != 1 {
		t.Error("session open not counted")
	}
}

func TestReplay_PolicyFailure(t *testing.T) {
	sink := policy.NewStubSink()
	sink.SetError(errors.New("bucket gone"))

	result, err := Replay(t.Context(), ReplayConfig{
		Meta:   types.SessionMeta{SessionID: "s1"},
		Reader: jsonlReader(t, lineSources),
		Policy: policy.NewStrictPolicy(sink),
		Logger: log.NewNop(),
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if result.Outcome.Status != OutcomePolicyFailure || result.Outcome.ExitCode() != ExitCodePolicy {
		t.Errorf("outcome = %+v", result.Outcome)
	}
}

func TestReplay_RequiresReader(t *testing.T) {
	if _, err := Replay(t.Context(), ReplayConfig{}); err == nil {
		t.Fatal("expected error without reader")
	}
}

func TestReplay_AssignsSessionID(t *testing.T) {
	result, err := Replay(t.Context(), ReplayConfig{Reader: jsonlReader(t), Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if result.Meta.SessionID == "" {
		t.Error("no session id assigned")
	}
}

func TestDetermineOutcome(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   OutcomeStatus
		exitCode int
	}{
		{"clean", nil, OutcomeSuccess, ExitCodeOK},
		{"stream", &IngestionError{Kind: IngestionErrorStream, Err: errors.New("short frame")}, OutcomeStreamError, ExitCodeStream},
		{"policy", &IngestionError{Kind: IngestionErrorPolicy, Err: errors.New("full")}, OutcomePolicyFailure, ExitCodePolicy},
		{"canceled", &IngestionError{Kind: IngestionErrorCanceled, Err: errors.New("canceled")}, OutcomeCanceled, ExitCodeStream},
		{"unclassified", errors.New("boom"), OutcomeStreamError, ExitCodeStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DetermineOutcome(tt.err)
			if o.Status != tt.status {
				t.Errorf("status = %q, want %q", o.Status, tt.status)
			}
			if o.ExitCode() != tt.exitCode {
				t.Errorf("exit code = %d, want %d", o.ExitCode(), tt.exitCode)
			}
			if o.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestBuildReplayReport(t *testing.T) {
	art := types.Artifact{ID: "a1", Type: types.ArtifactFacilityMap, Status: types.StatusComplete}
	result := &ReplayResult{
		Meta:          types.SessionMeta{SessionID: "s1", ChatID: "c1"},
		Outcome:       Outcome{Status: OutcomeSuccess, Message: "stream consumed"},
		PartCount:     9,
		SnapshotCount: 1,
		PolicyStats:   policy.Stats{TotalParts: 5, PartsPersisted: 4, PartsDropped: 1, SnapshotsPersisted: 1},
		Notify:        NotifyResult{Received: 1, Published: 1},
	}
	result.State.Current = &art
	result.State.Types = []string{types.ArtifactFacilityMap}
	result.State.History = []types.Artifact{art}

	report := BuildReplayReport(result, metrics.Snapshot{PartsReceived: 9}, "streaming",
		map[policy.FlushTrigger]int64{policy.FlushTriggerCount: 2})

	if report.ExitCode != ExitCodeOK || report.Outcome != OutcomeSuccess {
		t.Errorf("report outcome = %q/%d", report.Outcome, report.ExitCode)
	}
	if report.Artifacts.CurrentID != "a1" || report.Artifacts.History != 1 {
		t.Errorf("artifacts = %+v", report.Artifacts)
	}
	if report.Policy.FlushTriggers["count"] != 2 || report.Policy.PartsDropped != 1 {
		t.Errorf("policy = %+v", report.Policy)
	}

	var buf bytes.Buffer
	if err := writeReplayReportTo(report, &buf); err != nil {
		t.Fatalf("writeReplayReportTo: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if decoded["session_id"] != "s1" || decoded["outcome"] != "success" {
		t.Errorf("decoded = %v", decoded)
	}

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteReplayReport(report, path); err != nil {
		t.Fatalf("WriteReplayReport: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Error("file report differs from writer report")
	}

	if err := WriteReplayReport(report, ""); err == nil {
		t.Error("expected error for empty path")
	}
}
