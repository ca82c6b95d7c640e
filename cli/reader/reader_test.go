package reader

import (
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/vantage/lode"
	"github.com/pithecene-io/vantage/types"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func archived(session, id string, status types.ArtifactStatus, payload any) types.ArtifactSnapshot {
	event, _ := types.EventFor(status)
	art := types.Artifact{ID: id, Type: types.ArtifactFacilityMap, Status: status, Payload: payload}
	if status == types.StatusError {
		art.Type = types.ArtifactMissionPlan
		art.Error = "geocoder timeout"
	}
	return types.ArtifactSnapshot{
		SessionID:  session,
		ChatID:     "c1",
		Event:      event,
		Seq:        4,
		Artifact:   art,
		RecordedAt: t0,
	}
}

func TestBuildHistory(t *testing.T) {
	resp := BuildHistory("s1", []types.ArtifactSnapshot{
		archived("s1", "a1", types.StatusComplete, map[string]any{"title": "Clinics"}),
		archived("s1", "a2", types.StatusError, nil),
		archived("s1", "a3", types.StatusComplete, map[any]any{"title": "Deserts"}),
	})

	if resp.Total != 3 || resp.Completed != 2 || resp.Failed != 1 {
		t.Errorf("counts = %d/%d/%d", resp.Total, resp.Completed, resp.Failed)
	}
	if resp.ByType[types.ArtifactFacilityMap] != 2 || resp.ByType[types.ArtifactMissionPlan] != 1 {
		t.Errorf("by type = %v", resp.ByType)
	}

	tests := []struct {
		i     int
		id    string
		title string
		event types.LifecycleEvent
		err   string
	}{
		{0, "a1", "Clinics", types.EventArtifactCompleted, ""},
		{1, "a2", "", types.EventArtifactFailed, "geocoder timeout"},
		{2, "a3", "Deserts", types.EventArtifactCompleted, ""},
	}
	for _, tt := range tests {
		e := resp.Entries[tt.i]
		if e.ArtifactID != tt.id || e.Title != tt.title || e.Event != tt.event || e.Error != tt.err {
			t.Errorf("entry %d = %+v", tt.i, e)
		}
	}
	if len(resp.Artifacts) != 3 || resp.Artifacts[1].ID != "a2" {
		t.Errorf("artifacts = %+v", resp.Artifacts)
	}
}

func TestBuildHistory_Empty(t *testing.T) {
	resp := BuildHistory("s1", nil)
	if resp.Total != 0 || resp.Entries == nil || resp.ByType == nil {
		t.Errorf("empty history = %+v", resp)
	}
}

func TestArchiveReader(t *testing.T) {
	src := NewStubSource()
	src.Add(
		archived("s2", "b1", types.StatusComplete, nil),
		archived("s1", "a1", types.StatusComplete, nil),
	)
	r, err := NewArchiveReader(src)
	if err != nil {
		t.Fatalf("NewArchiveReader: %v", err)
	}
	ctx := t.Context()

	sessions, err := r.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].SessionID != "s1" {
		t.Errorf("sessions = %+v", sessions)
	}

	h, err := r.History(ctx, "s2")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if h.SessionID != "s2" || h.Total != 1 || h.Entries[0].ArtifactID != "b1" {
		t.Errorf("history = %+v", h)
	}

	if _, err := r.History(ctx, "nobody"); !errors.Is(err, lode.ErrNoHistory) {
		t.Errorf("unknown session err = %v, want ErrNoHistory", err)
	}
	if _, err := r.History(ctx, ""); err == nil {
		t.Error("expected error for empty session id")
	}

	src.SetError(errors.New("bucket gone"))
	if _, err := r.ListSessions(ctx); err == nil {
		t.Error("expected source error")
	}
}

func TestNewArchiveReader_NilSource(t *testing.T) {
	if _, err := NewArchiveReader(nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}
