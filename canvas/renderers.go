package canvas

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/vantage/types"
)

// BuiltinRenderers returns the renderers for the known artifact types.
func BuiltinRenderers() map[string]Renderer {
	return map[string]Renderer{
		types.ArtifactFacilityMap:    NewRendererFunc(types.ArtifactFacilityMap, renderFacilityMap),
		types.ArtifactMedicalDesert:  NewRendererFunc(types.ArtifactMedicalDesert, renderMedicalDesert),
		types.ArtifactStatsDashboard: NewRendererFunc(types.ArtifactStatsDashboard, renderStatsDashboard),
		types.ArtifactMissionPlan:    NewRendererFunc(types.ArtifactMissionPlan, renderMissionPlan),
	}
}

// FallbackRenderer renders artifacts of unknown type, and known types
// whose payload did not narrow, as a labelled raw dump.
func FallbackRenderer() Renderer {
	return NewRendererFunc("fallback", renderFallback)
}

func header(art types.Artifact, title string) string {
	var b strings.Builder
	if title == "" {
		title = art.Type
	}
	if title == "" {
		title = "Untitled artifact"
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("  ")
	b.WriteString(StatusStyle(art.Status).Render(string(art.Status)))
	b.WriteString("\n")
	if art.Status == types.StatusError {
		b.WriteString(ErrorStyle.Render("error: " + art.Error))
		b.WriteString("\n")
	}
	return b.String()
}

func progressLine(p types.Progress, status types.ArtifactStatus) string {
	if status != types.StatusStreaming || (p.Stage == "" && p.Progress == 0) {
		return ""
	}
	return MutedStyle.Render(fmt.Sprintf("%s %3.0f%%", p.Stage, p.Progress*100)) + "\n"
}

func row(label, value string) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(value) + "\n"
}

func renderFacilityMap(art types.Artifact, payload types.Payload) string {
	p, ok := payload.(*types.FacilityMapPayload)
	if !ok {
		return renderFallback(art, payload)
	}
	var b strings.Builder
	b.WriteString(header(art, p.Title))
	b.WriteString(progressLine(p.Progress, art.Status))
	b.WriteString(row("Center", fmt.Sprintf("%.4f, %.4f (zoom %.0f)", p.Center.Lat, p.Center.Lng, p.Zoom)))
	b.WriteString(row("Facilities", fmt.Sprintf("%d", len(p.Facilities))))
	for _, f := range p.Facilities {
		line := fmt.Sprintf("  • %s (%.3f, %.3f)", f.Name, f.Lat, f.Lng)
		if f.Kind != "" {
			line += " " + MutedStyle.Render(f.Kind)
		}
		b.WriteString(line + "\n")
	}
	return PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderMedicalDesert(art types.Artifact, payload types.Payload) string {
	p, ok := payload.(*types.MedicalDesertPayload)
	if !ok {
		return renderFallback(art, payload)
	}
	var b strings.Builder
	b.WriteString(header(art, p.Title))
	b.WriteString(progressLine(p.Progress, art.Status))
	if p.Region != "" {
		b.WriteString(row("Region", p.Region))
	}
	b.WriteString(row("Desert zones", fmt.Sprintf("%d", len(p.Deserts))))
	for _, d := range p.Deserts {
		b.WriteString(fmt.Sprintf("  • %s  pop %d  nearest %.1f km  %s\n",
			d.Name, d.Population, d.NearestFacilityKm, severityStyle(d.Severity).Render(d.Severity)))
	}
	return PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func severityStyle(s string) lipgloss.Style {
	switch s {
	case "high", "critical":
		return ErrorStyle
	case "medium", "moderate":
		return WarningStyle
	default:
		return MutedStyle
	}
}

func renderStatsDashboard(art types.Artifact, payload types.Payload) string {
	p, ok := payload.(*types.StatsDashboardPayload)
	if !ok {
		return renderFallback(art, payload)
	}
	var b strings.Builder
	b.WriteString(header(art, p.Title))
	b.WriteString(progressLine(p.Progress, art.Status))
	for _, m := range p.Metrics {
		value := formatNumber(m.Value)
		if m.Unit != "" {
			value += " " + m.Unit
		}
		if m.Delta != 0 {
			value += fmt.Sprintf(" (%+.1f)", m.Delta)
		}
		b.WriteString(row(m.Label, value))
	}
	for _, c := range p.Charts {
		b.WriteString("\n" + TitleStyle.Render(c.Title) + " " + MutedStyle.Render(c.Kind) + "\n")
		b.WriteString(bars(c.Series))
	}
	return PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func bars(series []types.SeriesPoint) string {
	maxVal := 0.0
	for _, pt := range series {
		maxVal = max(maxVal, pt.Value)
	}
	var b strings.Builder
	for _, pt := range series {
		width := 0
		if maxVal > 0 && pt.Value > 0 {
			width = int(pt.Value / maxVal * 24)
		}
		b.WriteString(fmt.Sprintf("  %-12s %s %s\n", pt.Label, strings.Repeat("█", width), formatNumber(pt.Value)))
	}
	return b.String()
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func renderMissionPlan(art types.Artifact, payload types.Payload) string {
	p, ok := payload.(*types.MissionPlanPayload)
	if !ok {
		return renderFallback(art, payload)
	}
	var b strings.Builder
	b.WriteString(header(art, p.Title))
	b.WriteString(progressLine(p.Progress, art.Status))
	if p.Objective != "" {
		b.WriteString(row("Objective", p.Objective))
	}
	for i, s := range p.Steps {
		status := s.Status
		if status == "" {
			status = "pending"
		}
		line := fmt.Sprintf("  %d. %s [%s]", i+1, s.Title, status)
		if s.ETA != "" {
			line += " " + MutedStyle.Render("eta "+s.ETA)
		}
		b.WriteString(line + "\n")
	}
	return PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderFallback(art types.Artifact, payload types.Payload) string {
	var b strings.Builder
	b.WriteString(header(art, ""))
	switch {
	case art.Type == "":
		b.WriteString(WarningStyle.Render("unknown artifact type: (none)"))
	case slices.Contains(types.KnownArtifactTypes(), art.Type):
		b.WriteString(WarningStyle.Render("unrecognized payload for " + art.Type))
	default:
		b.WriteString(WarningStyle.Render("unknown artifact type: " + art.Type))
	}
	b.WriteString("\n")

	raw := art.Payload
	if op, ok := payload.(*types.OpaquePayload); ok {
		raw = op.Raw
	}
	if raw != nil {
		data, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf("%v", raw))
		}
		b.WriteString(MutedStyle.Render(string(data)))
	}
	return PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}
