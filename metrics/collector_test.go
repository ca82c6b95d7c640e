package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("strict", "fs", "redis")

	c.IncSessionOpened()
	c.IncSessionOpened()
	c.IncSessionEvicted()
	c.IncReset()
	c.IncSelection()
	c.IncSelection()
	c.IncSelection()
	c.IncPartReceived()
	c.IncPartReceived()
	c.IncPartForwarded()
	c.IncStaleDropped()
	c.IncDecodeErrors()
	c.IncArchiveWriteSuccess()
	c.IncArchiveWriteFailure()
	c.IncNotifySuccess()
	c.IncNotifyFailure()
	c.IncNotifyFailure()

	s := c.Snapshot()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"SessionsOpened", s.SessionsOpened, 2},
		{"SessionsEvicted", s.SessionsEvicted, 1},
		{"Resets", s.Resets, 1},
		{"Selections", s.Selections, 3},
		{"PartsReceived", s.PartsReceived, 2},
		{"PartsForwarded", s.PartsForwarded, 1},
		{"StaleDropped", s.StaleDropped, 1},
		{"DecodeErrors", s.DecodeErrors, 1},
		{"ArchiveWriteSuccess", s.ArchiveWriteSuccess, 1},
		{"ArchiveWriteFailure", s.ArchiveWriteFailure, 1},
		{"NotifySuccess", s.NotifySuccess, 1},
		{"NotifyFailure", s.NotifyFailure, 2},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestCollector_RecordAction(t *testing.T) {
	c := NewCollector("", "", "")
	c.RecordAction("stream", "facility-map")
	c.RecordAction("update", "facility-map")
	c.RecordAction("stream", "facility-map")
	c.RecordAction("stream", "mission-plan")

	s := c.Snapshot()
	if s.ArtifactParts != 4 {
		t.Errorf("ArtifactParts = %d, want 4", s.ArtifactParts)
	}
	if s.ActionsByKind["stream"] != 3 || s.ActionsByKind["update"] != 1 {
		t.Errorf("ActionsByKind = %v", s.ActionsByKind)
	}
	if s.ArtifactsByType["facility-map"] != 2 || s.ArtifactsByType["mission-plan"] != 1 {
		t.Errorf("ArtifactsByType = %v", s.ArtifactsByType)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	s := NewCollector("buffered", "s3", "").Snapshot()
	if s.Policy != "buffered" || s.StorageBackend != "s3" {
		t.Errorf("dimensions = %q/%q", s.Policy, s.StorageBackend)
	}
	if s.Adapter != "none" {
		t.Errorf("Adapter = %q, want none", s.Adapter)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.IncSessionOpened()
	c.IncPartReceived()
	c.RecordAction("stream", "x")
	c.IncArchiveWriteFailure()

	s := c.Snapshot()
	if s.PartsReceived != 0 || s.ActionsByKind != nil {
		t.Errorf("nil collector snapshot = %+v, want zero", s)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("noop", "memory", "")
	c.RecordAction("stream", "facility-map")
	s := c.Snapshot()

	c.RecordAction("stream", "facility-map")
	s.ArtifactsByType["injected"] = 99

	if s.ArtifactsByType["facility-map"] != 1 {
		t.Errorf("snapshot changed after later increment: %v", s.ArtifactsByType)
	}
	if _, ok := c.Snapshot().ArtifactsByType["injected"]; ok {
		t.Error("mutating a snapshot leaked into the collector")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("noop", "memory", "")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncPartReceived()
			c.RecordAction("update", "t")
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.PartsReceived != 50 || s.ActionsByKind["update"] != 50 {
		t.Errorf("PartsReceived=%d update=%d, want 50/50", s.PartsReceived, s.ActionsByKind["update"])
	}
}

func TestExporter_Handler(t *testing.T) {
	c := NewCollector("strict", "fs", "webhook")
	c.IncPartReceived()
	c.RecordAction("stream", "stats-dashboard")
	e := NewExporter(c)
	e.WSConnectionsActive.Inc()

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	wants := []string{
		`vantage_parts_received_total{adapter="webhook",policy="strict",storage_backend="fs"} 1`,
		`vantage_actions_total{adapter="webhook",kind="stream",policy="strict",storage_backend="fs"} 1`,
		`vantage_artifacts_streamed_total{adapter="webhook",artifact_type="stats-dashboard",policy="strict",storage_backend="fs"} 1`,
		`vantage_ws_connections_active 1`,
	}
	for _, w := range wants {
		if !strings.Contains(text, w) {
			t.Errorf("metrics output missing %q\n%s", w, text)
		}
	}
}
