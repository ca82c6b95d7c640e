package ipc

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pithecene-io/vantage/types"
)

const sampleLines = `{"type":"text-delta","data":"Looking up clinics"}

{"type":"data-artifact-stream","data":{"id":"a1","artifactType":"facility-map","payload":{"title":"Clinics"}}}
{"type":"data-artifact-complete","data":{"id":"a1","artifactType":"facility-map","payload":{"title":"Clinics","zoom":7}}}
`

func TestLineDecoder(t *testing.T) {
	dec := NewLineDecoder(strings.NewReader(sampleLines))

	var got []types.PartType
	for {
		part, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, part.Type)
	}

	want := []types.PartType{"text-delta", types.PartArtifactStream, types.PartArtifactComplete}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLineDecoder_BadLinesAreRecoverable(t *testing.T) {
	input := "not json\n{\"data\":1}\n{\"type\":\"text-delta\"}\n"
	dec := NewLineDecoder(strings.NewReader(input))

	for i, wantMsg := range []string{"line 1", "line 2"} {
		_, err := dec.Next()
		var frameErr *FrameError
		if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorDecode {
			t.Fatalf("line %d err = %v, want FrameErrorDecode", i+1, err)
		}
		if !strings.Contains(err.Error(), wantMsg) {
			t.Errorf("err = %q, want mention of %q", err, wantMsg)
		}
		if IsFatalFrameError(err) {
			t.Error("decode error reported fatal")
		}
	}

	part, err := dec.Next()
	if err != nil || part.Type != "text-delta" {
		t.Errorf("recovery part = %v, %v", part, err)
	}
}

func TestLineEncoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewLineEncoder(&buf)
	if err := enc.WritePart(samplePart()); err != nil {
		t.Fatal(err)
	}
	if err := enc.WritePart(&types.DataPart{Type: "text-delta", Data: "<b>"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"<b>"`) || strings.Contains(buf.String(), `\u003c`) {
		t.Errorf("HTML escaped output: %s", buf.String())
	}

	dec := NewLineDecoder(&buf)
	part, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	rec := part.Data.(map[string]any)
	if rec["id"] != "a1" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewPartReaderWriter(t *testing.T) {
	for _, format := range []string{FormatJSONL, FormatFrames} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewPartWriter(format, &buf)
			if err != nil {
				t.Fatal(err)
			}
			if err := w.WritePart(samplePart()); err != nil {
				t.Fatal(err)
			}
			r, err := NewPartReader(format, &buf)
			if err != nil {
				t.Fatal(err)
			}
			part, err := r.Next()
			if err != nil || part.Type != types.PartArtifactStream {
				t.Errorf("Next = %v, %v", part, err)
			}
		})
	}

	if _, err := NewPartReader("xml", nil); err == nil {
		t.Error("NewPartReader(xml) succeeded")
	}
	if _, err := NewPartWriter("xml", nil); err == nil {
		t.Error("NewPartWriter(xml) succeeded")
	}
}
