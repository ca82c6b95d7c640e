package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vantage/cli/render"
	"github.com/pithecene-io/vantage/cli/tui"
	"github.com/pithecene-io/vantage/iox"
	"github.com/pithecene-io/vantage/ipc"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/runtime"
	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/types"
)

// ReplayCommand returns the replay command.
// Replay feeds a recorded part stream through a session and archives it.
func ReplayCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    "Recorded part stream (\"-\" for stdin)",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "input-format",
			Usage: "Stream format: jsonl or frames",
			Value: ipc.FormatJSONL,
		},
		&cli.StringFlag{
			Name:  "session-id",
			Usage: "Session ID (generated when empty)",
		},
		&cli.StringFlag{
			Name:  "chat-id",
			Usage: "Chat to mount before the first part",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON replay report to this path (\"-\" for stderr)",
		},
		&cli.StringFlag{
			Name:  "tui-view",
			Usage: "TUI view with --tui: canvas or stats",
			Value: "canvas",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress result output",
		},
	}
	flags = append(flags, ReadOnlyFlags()...)
	flags = append(flags, pipelineFlags()...)

	return &cli.Command{
		Name:   "replay",
		Usage:  "Replay a recorded data part stream through a session",
		Flags:  flags,
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	tuiView := c.String("tui-view")
	if tuiView != "canvas" && tuiView != "stats" {
		return cli.Exit(fmt.Sprintf("invalid --tui-view %q (must be canvas or stats)", tuiView), runtime.ExitCodeUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}

	meta := types.SessionMeta{
		SessionID: c.String("session-id"),
		ChatID:    c.String("chat-id"),
	}
	if meta.SessionID == "" {
		meta.SessionID = types.NewSessionID()
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	logger = logger.WithSession(meta)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signalContext()
	defer stop()

	in, err := openInput(c.String("input"))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	defer iox.DiscardClose(in)

	partReader, err := ipc.NewPartReader(c.String("input-format"), in)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	defer func() { _ = p.Close() }()

	provider := session.NewProvider()
	page := session.NewPage(provider)

	result, err := runtime.Replay(ctx, runtime.ReplayConfig{
		Meta:      meta,
		Reader:    partReader,
		Page:      page,
		Policy:    p.policy,
		Notifier:  p.notifier,
		Logger:    logger,
		Collector: p.collector,
	})
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}

	var triggers map[policy.FlushTrigger]int64
	if sp, ok := p.policy.(*policy.StreamingPolicy); ok {
		triggers = sp.FlushTriggerStats()
	}
	report := runtime.BuildReplayReport(result, p.collector.Snapshot(), policyName(cfg), triggers)

	if path := c.String("report"); path != "" {
		if err := runtime.WriteReplayReport(report, path); err != nil {
			logger.Warn("report write failed", map[string]any{"error": err.Error()})
		}
	}

	switch {
	case c.Bool("tui") && tuiView == "stats":
		if err := r.RenderTUI(tui.ViewStatsReplay, report); err != nil {
			return err
		}
	case c.Bool("tui"):
		data := &tui.CanvasSession{Title: meta.SessionID, Provider: provider}
		if err := r.RenderTUI(tui.ViewCanvasSession, data); err != nil {
			return err
		}
	case !c.Bool("quiet"):
		if err := r.Render(report); err != nil {
			return err
		}
	}

	return cli.Exit("", result.Outcome.ExitCode())
}

// openInput opens path, or stdin for "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}
