package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vantage/adapter/redis"
	"github.com/pithecene-io/vantage/adapter/webhook"
	"github.com/pithecene-io/vantage/cli/config"
	"github.com/pithecene-io/vantage/ipc"
	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/runtime"
)

const (
	lineStream   = `{"type":"data-artifact-stream","data":{"id":"a1","artifactType":"facility-map","payload":{"title":"Clinics"}}}`
	lineComplete = `{"type":"data-artifact-complete","data":{"id":"a1","artifactType":"facility-map","payload":{"title":"Clinics","facilities":[]}}}`
	lineDelta    = `{"type":"text-delta","data":"Found 12 clinics"}`
)

func runApp(t *testing.T, args ...string) error {
	t.Helper()
	app := &cli.App{
		Name:           "vantage",
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			ReplayCommand(),
			HistoryCommand(),
			ConvertCommand(),
			VersionCommand("test"),
		},
	}
	return app.Run(append([]string{"vantage"}, args...))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Actual TTY behavior depends on runtime environment.
	_ = isStderrTTY()
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{"single", []string{"Authorization=Bearer x"}, map[string]string{"Authorization": "Bearer x"}, false},
		{"value with equals", []string{"X-Sig=a=b"}, map[string]string{"X-Sig": "a=b"}, false},
		{"trimmed", []string{" X-A = 1 "}, map[string]string{"X-A": "1"}, false},
		{"missing separator", []string{"Authorization"}, nil, true},
		{"empty key", []string{"=v"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHeaders(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHeaders error = %v, wantErr %v", err, tt.wantErr)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestBuildPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PolicyConfig
		check   func(policy.Policy) bool
		wantErr bool
	}{
		{"default strict", config.PolicyConfig{}, isType[*policy.StrictPolicy], false},
		{"noop", config.PolicyConfig{Name: "noop"}, isType[*policy.NoopPolicy], false},
		{"buffered defaults", config.PolicyConfig{Name: "buffered"}, isType[*policy.BufferedPolicy], false},
		{"buffered snapshots_first", config.PolicyConfig{Name: "buffered", FlushMode: "snapshots_first", BufferParts: 10}, isType[*policy.BufferedPolicy], false},
		{"buffered bad mode", config.PolicyConfig{Name: "buffered", FlushMode: "two_phase"}, nil, true},
		{"streaming count", config.PolicyConfig{Name: "streaming", FlushCount: 5}, isType[*policy.StreamingPolicy], false},
		{"streaming no trigger", config.PolicyConfig{Name: "streaming"}, nil, true},
		{"unknown", config.PolicyConfig{Name: "eventual"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildPolicy(tt.cfg, policy.NewStubSink(), log.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildPolicy error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer func() { _ = p.Close() }()
			if !tt.check(p) {
				t.Errorf("buildPolicy returned %T", p)
			}
		})
	}
}

func isType[T policy.Policy](p policy.Policy) bool {
	_, ok := p.(T)
	return ok
}

func TestBuildAdapter(t *testing.T) {
	zero := 0
	tests := []struct {
		name    string
		cfg     config.AdapterConfig
		want    string
		wantErr bool
	}{
		{"none", config.AdapterConfig{}, "", false},
		{"webhook", config.AdapterConfig{Type: "webhook", URL: "http://127.0.0.1:1/hook", Retries: &zero}, "webhook", false},
		{"redis", config.AdapterConfig{Type: "redis", URL: "redis://127.0.0.1:6379/0", Channel: "c"}, "redis", false},
		{"redis bad url", config.AdapterConfig{Type: "redis", URL: "http://nope"}, "", true},
		{"missing url", config.AdapterConfig{Type: "webhook"}, "", true},
		{"unknown", config.AdapterConfig{Type: "kafka", URL: "x"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := buildAdapter(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildAdapter error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			switch tt.want {
			case "":
				if a != nil {
					t.Errorf("expected no adapter, got %T", a)
				}
			case "webhook":
				if _, ok := a.(*webhook.Adapter); !ok {
					t.Errorf("got %T, want webhook", a)
				}
			case "redis":
				r, ok := a.(*redis.Adapter)
				if !ok {
					t.Fatalf("got %T, want redis", a)
				}
				if r.Channel() != "c" {
					t.Errorf("channel = %q", r.Channel())
				}
			}
			if a != nil {
				_ = a.Close()
			}
		})
	}
}

func TestBuildNotifier(t *testing.T) {
	cfg := &config.Config{}
	n, err := buildNotifier(cfg, nil, nil, log.NewNop(), nil)
	if err != nil || n != nil {
		t.Fatalf("expected no notifier, got %v, %v", n, err)
	}

	cfg.Archive.Sidecars = true
	if _, err := buildNotifier(cfg, nil, nil, log.NewNop(), nil); err == nil {
		t.Error("expected error for sidecars without archive")
	}
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	path := writeFile(t, "vantage.yaml", `policy:
  name: buffered
  buffer_parts: 50
archive:
  path: ./data
adapter:
  type: webhook
  url: https://hooks.example.com
`)

	var got *config.Config
	app := &cli.App{
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{{
			Name:  "probe",
			Flags: pipelineFlags(),
			Action: func(c *cli.Context) error {
				var err error
				got, err = loadConfig(c)
				return err
			},
		}},
	}
	err := app.Run([]string{"vantage", "probe",
		"--config", path,
		"--policy", "streaming",
		"--flush-interval", "2s",
		"--adapter-header", "Authorization=Bearer t",
		"--adapter-retries", "0",
	})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}

	if got.Policy.Name != "streaming" {
		t.Errorf("policy = %q, want flag value", got.Policy.Name)
	}
	if got.Policy.BufferParts != 50 {
		t.Errorf("buffer_parts = %d, want config value", got.Policy.BufferParts)
	}
	if got.Policy.FlushInterval.Duration != 2*time.Second {
		t.Errorf("flush_interval = %v", got.Policy.FlushInterval.Duration)
	}
	if got.Archive.Path != "./data" || got.Archive.Backend != "fs" {
		t.Errorf("archive = %+v", got.Archive)
	}
	if got.Adapter.Headers["Authorization"] != "Bearer t" {
		t.Errorf("headers = %v", got.Adapter.Headers)
	}
	if got.Adapter.Retries == nil || *got.Adapter.Retries != 0 {
		t.Errorf("retries = %v", got.Adapter.Retries)
	}
}

func TestConvertStream(t *testing.T) {
	in := strings.Join([]string{lineStream, "not json", lineComplete, ""}, "\n")

	var frames bytes.Buffer
	res, err := convertStream(strings.NewReader(in), &frames, ipc.FormatJSONL, ipc.FormatFrames)
	if err != nil {
		t.Fatalf("to frames: %v", err)
	}
	if res.Parts != 2 || res.Skipped != 1 {
		t.Errorf("result = %+v, want 2 parts and 1 skipped", res)
	}

	var back bytes.Buffer
	res, err = convertStream(&frames, &back, ipc.FormatFrames, ipc.FormatJSONL)
	if err != nil {
		t.Fatalf("to jsonl: %v", err)
	}
	if res.Parts != 2 {
		t.Errorf("parts = %d, want 2", res.Parts)
	}
	lines := strings.Split(strings.TrimSpace(back.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"data-artifact-stream"`) || !strings.Contains(lines[1], `"facilities":[]`) {
		t.Errorf("jsonl output = %q", back.String())
	}
}

func TestConvertStream_TruncatedFrame(t *testing.T) {
	truncated := []byte{0, 0, 0, 9, 0x81}
	_, err := convertStream(bytes.NewReader(truncated), &bytes.Buffer{}, ipc.FormatFrames, ipc.FormatJSONL)
	if !ipc.IsFatalFrameError(err) {
		t.Errorf("expected fatal frame error, got %v", err)
	}
}

func TestConvertCommand(t *testing.T) {
	input := writeFile(t, "in.jsonl", lineStream+"\n"+lineDelta+"\n")
	output := filepath.Join(t.TempDir(), "out.frames")

	if err := runApp(t, "convert", "--input", input, "--output", output); err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	dec := ipc.NewFrameDecoder(bytes.NewReader(data))
	for i := range 2 {
		if _, err := dec.Next(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	if code := exitCode(runApp(t, "convert", "--input", input, "--to", "xml")); code != runtime.ExitCodeUsage {
		t.Errorf("bad format exit = %d, want %d", code, runtime.ExitCodeUsage)
	}
}

func TestReplayCommand_ArchivesForHistory(t *testing.T) {
	input := writeFile(t, "chat.jsonl", strings.Join([]string{lineStream, lineDelta, lineComplete}, "\n"))
	archive := t.TempDir()
	report := filepath.Join(t.TempDir(), "report.json")

	err := runApp(t, "replay",
		"--input", input,
		"--session-id", "s1",
		"--chat-id", "c1",
		"--archive-path", archive,
		"--report", report,
		"--quiet",
	)
	if code := exitCode(err); code != runtime.ExitCodeOK {
		t.Fatalf("replay exit = %d (%v)", code, err)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got runtime.ReplayReport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got.Outcome != runtime.OutcomeSuccess || got.PartCount != 3 || got.ChatID != "c1" {
		t.Errorf("report = %+v", got)
	}
	if got.Artifacts == nil || got.Artifacts.Snapshots != 1 || got.Artifacts.CurrentID != "a1" {
		t.Errorf("artifacts = %+v", got.Artifacts)
	}
	if got.Metrics == nil || got.Metrics.ArchiveWriteSuccess == 0 {
		t.Errorf("archive writes not instrumented: %+v", got.Metrics)
	}

	if err := runApp(t, "history", "--archive-path", archive, "--session-id", "s1", "--format", "json"); err != nil {
		t.Errorf("history failed: %v", err)
	}
	if code := exitCode(runApp(t, "history", "--archive-path", archive, "--session-id", "nope", "--format", "json")); code != runtime.ExitCodeUsage {
		t.Errorf("unknown session exit = %d, want %d", code, runtime.ExitCodeUsage)
	}
}

func TestReplayCommand_ExitCodes(t *testing.T) {
	good := writeFile(t, "chat.jsonl", lineStream+"\n")
	truncated := writeFile(t, "chat.frames", string([]byte{0, 0, 0, 9, 0x81}))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"noop policy", []string{"--input", good, "--policy", "noop"}, runtime.ExitCodeOK},
		{"truncated frames", []string{"--input", truncated, "--input-format", "frames", "--policy", "noop"}, runtime.ExitCodeStream},
		{"missing input", []string{"--input", filepath.Join(t.TempDir(), "missing")}, runtime.ExitCodeUsage},
		{"bad policy", []string{"--input", good, "--policy", "eventual"}, runtime.ExitCodeUsage},
		{"streaming without trigger", []string{"--input", good, "--policy", "streaming"}, runtime.ExitCodeUsage},
		{"bad tui view", []string{"--input", good, "--tui-view", "graph"}, runtime.ExitCodeUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"replay", "--quiet"}, tt.args...)
			if code := exitCode(runApp(t, args...)); code != tt.want {
				t.Errorf("exit = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestHistoryCommand_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no archive path", []string{"history"}},
		{"tui without session", []string{"history", "--archive-path", t.TempDir(), "--tui"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := exitCode(runApp(t, tt.args...)); code != runtime.ExitCodeUsage {
				t.Errorf("exit = %d, want %d", code, runtime.ExitCodeUsage)
			}
		})
	}
}

func TestVersionCommand_RejectsTUI(t *testing.T) {
	if code := exitCode(runApp(t, "version", "--tui")); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
}
