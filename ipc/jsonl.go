package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pithecene-io/vantage/types"
)

// Stream formats.
const (
	FormatJSONL  = "jsonl"
	FormatFrames = "frames"
)

// PartReader yields data parts until io.EOF.
type PartReader interface {
	Next() (*types.DataPart, error)
}

// PartWriter writes data parts.
type PartWriter interface {
	WritePart(part *types.DataPart) error
}

// NewPartReader returns a reader for the named format.
func NewPartReader(format string, r io.Reader) (PartReader, error) {
	switch format {
	case FormatJSONL, "":
		return NewLineDecoder(r), nil
	case FormatFrames:
		return NewFrameDecoder(r), nil
	default:
		return nil, fmt.Errorf("unknown stream format %q (want %s or %s)", format, FormatJSONL, FormatFrames)
	}
}

// NewPartWriter returns a writer for the named format.
func NewPartWriter(format string, w io.Writer) (PartWriter, error) {
	switch format {
	case FormatJSONL, "":
		return NewLineEncoder(w), nil
	case FormatFrames:
		return NewFrameEncoder(w), nil
	default:
		return nil, fmt.Errorf("unknown stream format %q (want %s or %s)", format, FormatJSONL, FormatFrames)
	}
}

// LineDecoder reads one JSON data part per line. Blank lines are skipped.
type LineDecoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewLineDecoder creates a line decoder. Lines may be up to MaxFrameSize.
func NewLineDecoder(r io.Reader) *LineDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)
	return &LineDecoder{scanner: sc}
}

// Next returns the next data part.
//
// Errors:
//   - io.EOF: no more lines
//   - *FrameError with Kind=FrameErrorDecode: the line is not a data part;
//     the decoder can continue with the next line
//   - *FrameError with Kind=FrameErrorTooLarge: the line exceeds the limit (fatal)
func (d *LineDecoder) Next() (*types.DataPart, error) {
	for d.scanner.Scan() {
		d.line++
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var part types.DataPart
		if err := json.Unmarshal(line, &part); err != nil {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Msg:  fmt.Sprintf("line %d: invalid data part", d.line),
				Err:  err,
			}
		}
		if part.Type == "" {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Msg:  fmt.Sprintf("line %d: missing type", d.line),
			}
		}
		return &part, nil
	}

	if err := d.scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, &FrameError{Kind: FrameErrorTooLarge, Msg: "line exceeds maximum size", Err: err}
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read line", Err: err}
	}
	return nil, io.EOF
}

// LineEncoder writes one JSON data part per line.
type LineEncoder struct {
	enc *json.Encoder
}

// NewLineEncoder creates a line encoder.
func NewLineEncoder(w io.Writer) *LineEncoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &LineEncoder{enc: enc}
}

// WritePart writes part followed by a newline.
func (e *LineEncoder) WritePart(part *types.DataPart) error {
	if err := e.enc.Encode(part); err != nil {
		return fmt.Errorf("encode data part: %w", err)
	}
	return nil
}
