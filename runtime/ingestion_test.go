package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pithecene-io/vantage/ipc"
	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/types"
)

// jsonlReader joins lines into a JSONL part reader.
func jsonlReader(t *testing.T, lines ...string) ipc.PartReader {
	t.Helper()
	r, err := ipc.NewPartReader(ipc.FormatJSONL, strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("NewPartReader: %v", err)
	}
	return r
}

const (
	lineTextDelta   = `{"type":"text-delta","data":"Found 12 clinics"}`
	lineStreamA1    = `{"type":"data-artifact-stream","data":{"id":"a1","artifactType":"facility-map","payload":{"title":"Clinics"}}}`
	lineUpdateA1    = `{"type":"data-artifact-update","data":{"id":"a1","artifactType":"facility-map","payload":{"progress":{"current":1,"total":2}}}}`
	lineCompleteA1  = `{"type":"data-artifact-complete","data":{"id":"a1","artifactType":"facility-map","payload":{"title":"Clinics","facilities":[]}}}`
	lineErrorStale  = `{"type":"data-artifact-error","data":{"id":"b9","artifactType":"mission-plan","error":"late"}}`
	lineErrorA1     = `{"type":"data-artifact-error","data":{"id":"a1","artifactType":"facility-map","error":"geocoder timeout"}}`
	lineTransient   = `{"type":"data-status","data":{"phase":"searching"},"transient":true}`
	lineSources     = `{"type":"data-sources","id":"p7","data":{"urls":["https://example.org"]}}`
	lineNavigateC1  = `{"type":"session-navigate","data":{"chatId":"c1"}}`
	lineNavigateC2  = `{"type":"session-navigate","data":{"chatId":"c2"}}`
	lineNavigateNil = `{"type":"session-navigate","data":{}}`
)

func TestIngestionEngine_RoutesParts(t *testing.T) {
	sink := policy.NewStubSink()
	collector := metrics.NewCollector("strict", "memory", "")
	page := session.NewPage(session.NewProvider())

	engine := NewIngestionEngine(jsonlReader(t,
		lineTextDelta,
		lineStreamA1,
		lineUpdateA1,
		lineTransient,
		lineErrorStale,
		lineSources,
		lineCompleteA1,
	), EngineConfig{
		SessionID: "s1",
		Page:      page,
		Policy:    policy.NewStrictPolicy(sink),
		Collector: collector,
	})

	if err := engine.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := engine.CurrentSeq(); got != 7 {
		t.Errorf("CurrentSeq = %d, want 7", got)
	}

	stats := sink.Stats()
	if stats.PartsWritten != 2 {
		t.Fatalf("PartsWritten = %d, want 2 (transient and artifact parts are not forwarded)", stats.PartsWritten)
	}
	if sink.WrittenParts[0].Seq != 1 || sink.WrittenParts[1].Seq != 6 {
		t.Errorf("forwarded seqs = %d, %d, want 1, 6", sink.WrittenParts[0].Seq, sink.WrittenParts[1].Seq)
	}
	if sink.WrittenParts[1].Part.ID != "p7" || sink.WrittenParts[1].SessionID != "s1" {
		t.Errorf("forwarded record = %+v", sink.WrittenParts[1])
	}

	if stats.SnapshotsWritten != 1 {
		t.Fatalf("SnapshotsWritten = %d, want 1", stats.SnapshotsWritten)
	}
	snap := sink.WrittenSnapshots[0]
	if snap.Event != types.EventArtifactCompleted || snap.Seq != 7 || snap.Artifact.ID != "a1" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Artifact.Status != types.StatusComplete {
		t.Errorf("snapshot status = %q", snap.Artifact.Status)
	}
	if engine.SnapshotCount() != 1 {
		t.Errorf("SnapshotCount = %d, want 1", engine.SnapshotCount())
	}

	state := page.Provider().State()
	if state.Current == nil || state.Current.ID != "a1" || state.Current.Status != types.StatusComplete {
		t.Errorf("current = %+v", state.Current)
	}

	m := collector.Snapshot()
	if m.PartsReceived != 7 {
		t.Errorf("PartsReceived = %d, want 7", m.PartsReceived)
	}
	if m.ArtifactParts != 4 {
		t.Errorf("ArtifactParts = %d, want 4", m.ArtifactParts)
	}
	if m.PartsForwarded != 2 {
		t.Errorf("PartsForwarded = %d, want 2", m.PartsForwarded)
	}
	if m.StaleDropped != 1 {
		t.Errorf("StaleDropped = %d, want 1", m.StaleDropped)
	}
	if m.ActionsByKind["update"] != 1 || m.ArtifactsByType["facility-map"] != 1 {
		t.Errorf("actions = %v, types = %v", m.ActionsByKind, m.ArtifactsByType)
	}
}

func TestIngestionEngine_DispatchesThroughProvider(t *testing.T) {
	provider := session.NewProvider()
	var kinds []string
	provider.Subscribe(func(c session.Change) { kinds = append(kinds, c.Action.Kind.String()) })

	engine := NewIngestionEngine(nil, EngineConfig{
		SessionID: "s1",
		Page:      session.NewPage(provider),
		Policy:    policy.NewNoopPolicy(),
	})

	for _, line := range []string{lineTextDelta, lineStreamA1, lineErrorStale, lineSources, lineCompleteA1} {
		part, err := ipc.NewLineDecoder(strings.NewReader(line)).Next()
		if err != nil {
			t.Fatalf("decode %s: %v", line, err)
		}
		if err := engine.Ingest(t.Context(), *part); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	want := []string{"stream", "complete"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("provider changes = %v, want %v", kinds, want)
	}
	if cur := provider.State().Current; cur == nil || cur.Status != types.StatusComplete {
		t.Errorf("current = %+v, want completed a1", cur)
	}
}

func TestIngestionEngine_ErrorSnapshot(t *testing.T) {
	sink := policy.NewStubSink()
	engine := NewIngestionEngine(jsonlReader(t, lineStreamA1, lineErrorA1), EngineConfig{
		SessionID: "s1",
		Policy:    policy.NewStrictPolicy(sink),
	})

	if err := engine.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.WrittenSnapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(sink.WrittenSnapshots))
	}
	snap := sink.WrittenSnapshots[0]
	if snap.Event != types.EventArtifactFailed || snap.Artifact.Error != "geocoder timeout" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestIngestionEngine_Navigate(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBufferedPolicy(sink, policy.DefaultBufferedConfig())
	if err != nil {
		t.Fatalf("NewBufferedPolicy: %v", err)
	}
	collector := metrics.NewCollector("buffered", "memory", "")
	page := session.NewPage(session.NewProvider())

	engine := NewIngestionEngine(jsonlReader(t,
		lineNavigateC1,
		lineStreamA1,
		lineSources,
		lineNavigateC1,
		lineNavigateNil,
	), EngineConfig{SessionID: "s1", Page: page, Policy: pol, Collector: collector})

	if err := engine.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if page.ChatID() != "c1" {
		t.Errorf("ChatID = %q, want c1", page.ChatID())
	}
	if page.Provider().State().Current == nil {
		t.Fatal("mount or same-chat navigation reset the provider")
	}
	if collector.Snapshot().Resets != 0 {
		t.Errorf("Resets = %d, want 0", collector.Snapshot().Resets)
	}

	// Parts buffered for c1 must reach the sink before the reset.
	engine2 := NewIngestionEngine(jsonlReader(t, lineSources, lineNavigateC2), EngineConfig{
		SessionID: "s1", Page: page, Policy: pol, Collector: collector,
	})
	sink.WrittenParts = nil
	if err := engine2.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.WrittenParts) != 1 || sink.WrittenParts[0].ChatID != "c1" {
		t.Fatalf("parts flushed on navigate = %+v, want one part for c1", sink.WrittenParts)
	}
	if page.ChatID() != "c2" {
		t.Errorf("ChatID = %q, want c2", page.ChatID())
	}
	if page.Provider().State().Current != nil {
		t.Error("navigation to a different chat did not reset the provider")
	}
	if collector.Snapshot().Resets != 1 {
		t.Errorf("Resets = %d, want 1", collector.Snapshot().Resets)
	}
}

func TestIngestionEngine_DecodeErrorSkipped(t *testing.T) {
	collector := metrics.NewCollector("noop", "", "")
	engine := NewIngestionEngine(jsonlReader(t,
		`not json`,
		`{"data":"missing type"}`,
		lineStreamA1,
	), EngineConfig{SessionID: "s1", Collector: collector})

	if err := engine.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := collector.Snapshot().DecodeErrors; got != 2 {
		t.Errorf("DecodeErrors = %d, want 2", got)
	}
	if engine.CurrentSeq() != 1 {
		t.Errorf("CurrentSeq = %d, want 1", engine.CurrentSeq())
	}
	if engine.Page().Provider().State().Current == nil {
		t.Error("part after decode errors was not applied")
	}
}

func TestIngestionEngine_TruncatedFrameIsFatal(t *testing.T) {
	var buf bytes.Buffer
	enc := ipc.NewFrameEncoder(&buf)
	part := types.NewArtifactPart(types.PartArtifactStream, types.ArtifactPartData{ID: "a1", ArtifactType: "facility-map"})
	for range 2 {
		if err := enc.WritePart(&part); err != nil {
			t.Fatalf("WritePart: %v", err)
		}
	}
	data := buf.Bytes()[:buf.Len()-3]

	reader, err := ipc.NewPartReader(ipc.FormatFrames, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewPartReader: %v", err)
	}
	engine := NewIngestionEngine(reader, EngineConfig{SessionID: "s1"})

	err = engine.Run(t.Context())
	if !IsStreamError(err) {
		t.Fatalf("Run error = %v, want stream error", err)
	}
	if engine.CurrentSeq() != 1 {
		t.Errorf("CurrentSeq = %d, want 1", engine.CurrentSeq())
	}
}

func TestIngestionEngine_PolicyFailure(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{name: "forwarded part", lines: []string{lineSources}},
		{name: "artifact snapshot", lines: []string{lineStreamA1, lineCompleteA1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := policy.NewStubSink()
			sink.SetError(errors.New("disk full"))
			engine := NewIngestionEngine(jsonlReader(t, tt.lines...), EngineConfig{
				SessionID: "s1",
				Policy:    policy.NewStrictPolicy(sink),
			})

			err := engine.Run(t.Context())
			if !IsPolicyError(err) {
				t.Fatalf("Run error = %v, want policy error", err)
			}
			if IsStreamError(err) || IsCanceledError(err) {
				t.Error("policy error misclassified")
			}
		})
	}
}

func TestIngestionEngine_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	engine := NewIngestionEngine(jsonlReader(t, lineStreamA1), EngineConfig{SessionID: "s1"})
	err := engine.Run(ctx)
	if !IsCanceledError(err) {
		t.Fatalf("Run error = %v, want canceled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("canceled error does not wrap context.Canceled")
	}
}

func TestIngestionEngine_NoReader(t *testing.T) {
	engine := NewIngestionEngine(nil, EngineConfig{})
	if err := engine.Run(t.Context()); !IsStreamError(err) {
		t.Fatalf("Run error = %v, want stream error", err)
	}

	part := types.NewArtifactPart(types.PartArtifactStream, types.ArtifactPartData{ID: "a1", ArtifactType: "x"})
	if err := engine.Ingest(t.Context(), part); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if engine.Page().Provider().State().Current == nil {
		t.Error("Ingest did not reach the provider")
	}
}

func TestChatIDOf(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"record", map[string]any{"chatId": "c1"}, "c1"},
		{"msgpack record", map[any]any{"chatId": "c2"}, "c2"},
		{"typed", types.NavigatePayload{ChatID: "c3"}, "c3"},
		{"typed pointer", &types.NavigatePayload{ChatID: "c4"}, "c4"},
		{"nil pointer", (*types.NavigatePayload)(nil), ""},
		{"wrong type", map[string]any{"chatId": 7}, ""},
		{"string", "c5", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chatIDOf(tt.data); got != tt.want {
				t.Errorf("chatIDOf = %q, want %q", got, tt.want)
			}
		})
	}
}
