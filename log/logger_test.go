package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pithecene-io/vantage/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_SessionFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(&types.SessionMeta{SessionID: "s-1", ChatID: "c-1"}, &buf)

	l.Info("artifact applied", map[string]any{"artifact_id": "a1"})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	entry := lines[0]
	if entry["session_id"] != "s-1" || entry["chat_id"] != "c-1" {
		t.Errorf("missing session fields: %v", entry)
	}
	if entry["level"] != "info" || entry["message"] != "artifact applied" {
		t.Errorf("unexpected level/message: %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
	fields, _ := entry["fields"].(map[string]any)
	if fields["artifact_id"] != "a1" {
		t.Errorf("fields = %v, want artifact_id=a1", fields)
	}
}

func TestLogger_NilMetaOmitsSessionFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(nil, &buf)
	l.Warn("no session", nil)

	entry := decodeLines(t, &buf)[0]
	if _, ok := entry["session_id"]; ok {
		t.Errorf("unexpected session_id: %v", entry)
	}
}

func TestLogger_WithSession(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(nil, &buf).WithSession(types.SessionMeta{SessionID: "s-2"})
	l.Debug("x", nil)

	entry := decodeLines(t, &buf)[0]
	if entry["session_id"] != "s-2" {
		t.Errorf("session_id = %v, want s-2", entry["session_id"])
	}
	if _, ok := entry["chat_id"]; ok {
		t.Errorf("chat_id should be omitted when empty: %v", entry)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(nil, &buf)

	if err := l.SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Error("shown", nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "shown" {
		t.Errorf("lines = %v, want only error entry", lines)
	}

	if err := l.SetLevel("loud"); err == nil {
		t.Error("SetLevel(loud) = nil, want error")
	}
}

func TestLogger_WithOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := newLoggerWithWriter(&types.SessionMeta{SessionID: "s-3"}, &first).WithOutput(&second)
	l.Info("redirected", nil)

	if first.Len() != 0 {
		t.Errorf("original writer received %q", first.String())
	}
	entry := decodeLines(t, &second)[0]
	if entry["session_id"] != "s-3" {
		t.Errorf("session fields lost after WithOutput: %v", entry)
	}
}

func TestSugaredLogger(t *testing.T) {
	var buf bytes.Buffer
	s := newLoggerWithWriter(nil, &buf).Sugar().With("component", "replay")
	s.Infof("replayed %d parts", 3)

	entry := decodeLines(t, &buf)[0]
	if entry["message"] != "replayed 3 parts" || entry["component"] != "replay" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Error("discarded", map[string]any{"k": "v"})
	l.Sugar().Errorf("discarded %s", "too")
}
