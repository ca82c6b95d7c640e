package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/vantage/types"
)

func TestNewArtifactEvent(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("GMT+1", 3600))
	snap := &types.ArtifactSnapshot{
		SessionID:  "s1",
		ChatID:     "c1",
		Event:      types.EventArtifactFailed,
		Seq:        8,
		RecordedAt: at,
		Artifact: types.Artifact{
			ID:      "a1",
			Type:    types.ArtifactMedicalDesert,
			Status:  types.StatusError,
			Error:   "geocoder timeout",
			Payload: map[string]any{"title": "Northern deserts"},
		},
	}

	ev := NewArtifactEvent(snap)
	want := ArtifactEvent{
		ContractVersion: types.ContractVersion,
		EventType:       "artifact_failed",
		SessionID:       "s1",
		ChatID:          "c1",
		ArtifactID:      "a1",
		ArtifactType:    types.ArtifactMedicalDesert,
		Status:          "error",
		Error:           "geocoder timeout",
		Title:           "Northern deserts",
		Seq:             8,
		Timestamp:       "2026-03-14T08:30:00Z",
	}
	if *ev != want {
		t.Errorf("event = %+v\nwant    %+v", *ev, want)
	}

	snap.Artifact.Payload = "not a record"
	if NewArtifactEvent(snap).Title != "" {
		t.Error("title from non-record payload")
	}
}

func TestRetry(t *testing.T) {
	BaseBackoff = time.Millisecond
	t.Cleanup(func() { BaseBackoff = 500 * time.Millisecond })

	fatal := errors.New("fatal")
	tests := []struct {
		name       string
		retries    int
		failures   int
		err        error
		wantCalls  int
		wantErr    bool
		wantSubstr string
	}{
		{name: "first try", retries: 3, failures: 0, wantCalls: 1},
		{name: "succeeds on retry", retries: 3, failures: 2, wantCalls: 3},
		{name: "exhausted", retries: 2, failures: 5, wantCalls: 3, wantErr: true, wantSubstr: "failed after 3 attempts"},
		{name: "permanent", retries: 3, failures: 5, err: fatal, wantCalls: 1, wantErr: true, wantSubstr: "non-retriable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(t.Context(), "test", tt.retries, func(err error) bool { return errors.Is(err, fatal) }, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.err != nil {
						return tt.err
					}
					return errors.New("transient")
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantSubstr != "" && !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("err = %q, want %q", err, tt.wantSubstr)
			}
		})
	}
}

func TestRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	called := false
	err := Retry(ctx, "test", 3, nil, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("err = %v, called = %v", err, called)
	}
}
