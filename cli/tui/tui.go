package tui

import (
	"fmt"
	"strings"
)

// View types.
const (
	// ViewCanvasSession draws a live provider: tabs, panel and cards.
	ViewCanvasSession = "canvas_session"
	// ViewCanvasHistory draws archived artifacts as a canvas.
	ViewCanvasHistory = "canvas_history"
	// ViewStatsReplay draws a replay report.
	ViewStatsReplay = "stats_replay"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "canvas_") {
		return RunCanvasTUI(viewType, data)
	}
	if strings.HasPrefix(viewType, "stats_") {
		return RunStatsTUI(viewType, data)
	}

	return fmt.Errorf("unknown view type: %s", viewType)
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		ViewCanvasSession,
		ViewCanvasHistory,
		ViewStatsReplay,
	}
}
