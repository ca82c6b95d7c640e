package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vantage/iox"
	"github.com/pithecene-io/vantage/ipc"
	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/runtime"
)

// ConvertResult summarizes a conversion.
type ConvertResult struct {
	Parts   int64 `json:"parts"`
	Skipped int64 `json:"skipped"`
}

// ConvertCommand returns the convert command.
func ConvertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Convert a part stream between JSONL and msgpack frames",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input stream (\"-\" for stdin)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output stream (\"-\" for stdout)",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Input format: jsonl or frames",
				Value: ipc.FormatJSONL,
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Output format: jsonl or frames",
				Value: ipc.FormatFrames,
			},
		},
		Action: convertAction,
	}
}

func convertAction(c *cli.Context) error {
	in, err := openInput(c.String("input"))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	defer iox.DiscardClose(in)

	out, err := openOutput(c.String("output"))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}

	res, err := convertStream(in, out, c.String("from"), c.String("to"))
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}

	sugar := log.NewLogger(nil).Sugar()
	if res.Skipped > 0 {
		sugar.Warnf("skipped %d undecodable parts", res.Skipped)
	}
	if err != nil {
		if ipc.IsFatalFrameError(err) {
			return cli.Exit(err.Error(), runtime.ExitCodeStream)
		}
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	sugar.Infof("converted %d parts", res.Parts)
	return nil
}

// convertStream copies every decodable part from r to w. Non-fatal decode
// errors skip the part; fatal framing errors stop the conversion.
func convertStream(r io.Reader, w io.Writer, from, to string) (ConvertResult, error) {
	var res ConvertResult

	dec, err := ipc.NewPartReader(from, r)
	if err != nil {
		return res, err
	}
	enc, err := ipc.NewPartWriter(to, w)
	if err != nil {
		return res, err
	}

	for {
		part, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			if ipc.IsFatalFrameError(err) {
				return res, err
			}
			res.Skipped++
			continue
		}
		if err := enc.WritePart(part); err != nil {
			return res, fmt.Errorf("write part %d: %w", res.Parts+1, err)
		}
		res.Parts++
	}
}

// bufferedFile flushes its buffer before closing the file.
type bufferedFile struct {
	*bufio.Writer
	f *os.File
}

func (b *bufferedFile) Close() error {
	if err := b.Flush(); err != nil {
		return err
	}
	if b.f == os.Stdout {
		return nil
	}
	return b.f.Close()
}

// openOutput opens path for writing, or stdout for "-".
func openOutput(path string) (io.WriteCloser, error) {
	f := os.Stdout
	if path != "-" {
		var err error
		if f, err = os.Create(path); err != nil {
			return nil, fmt.Errorf("failed to create output: %w", err)
		}
	}
	return &bufferedFile{Writer: bufio.NewWriter(f), f: f}, nil
}
