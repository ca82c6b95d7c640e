package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vantage/cli/reader"
	"github.com/pithecene-io/vantage/cli/render"
	"github.com/pithecene-io/vantage/cli/tui"
	"github.com/pithecene-io/vantage/lode"
	"github.com/pithecene-io/vantage/runtime"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// HistoryCommand returns the history command.
// Without a session it lists archived sessions; with one it shows the
// session's archived artifacts. History is read-only.
func HistoryCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:    "session-id",
			Aliases: []string{"s"},
			Usage:   "Session to show (lists sessions when empty)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of sessions to list (0 = no limit)",
		},
	}
	flags = append(flags, ReadOnlyFlags()...)
	flags = append(flags, ArchiveFlags()...)

	return &cli.Command{
		Name:   "history",
		Usage:  "Show archived artifact history",
		Flags:  flags,
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}

	archive, err := buildArchiveReader(c.Context, cfg.Archive)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	rd, err := reader.NewArchiveReader(archive)
	if err != nil {
		return err
	}

	sessionID := c.String("session-id")
	if sessionID == "" {
		if c.Bool("tui") {
			return cli.Exit("--tui requires --session-id", runtime.ExitCodeUsage)
		}
		return listSessions(c, r, rd)
	}

	h, err := rd.History(c.Context, sessionID)
	if errors.Is(err, lode.ErrNoHistory) || errors.Is(err, lode.ErrNotFound) {
		return cli.Exit(fmt.Sprintf("no archived history for session %s", sessionID), runtime.ExitCodeUsage)
	}
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewCanvasHistory, h)
	}
	return r.Render(h)
}

func listSessions(c *cli.Context, r *render.Renderer, rd reader.Reader) error {
	items, err := rd.ListSessions(c.Context)
	if err != nil {
		return err
	}

	limit := c.Int("limit")
	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(items) > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d sessions. Consider using --limit to reduce output.\n\n", len(items))
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return r.Render(items)
}
