// Package canvas decides how the active artifact is shown.
//
// The Selector maps the current artifact's type to a Renderer, falling back
// to a generic renderer for types it does not know. Tabs, Panel and Cards
// derive the rest of the canvas chrome from the same state snapshot. None of
// these mutate stream state; selection goes back through the session
// provider.
package canvas

import (
	"sync"

	"github.com/pithecene-io/vantage/stream"
	"github.com/pithecene-io/vantage/types"
)

// Renderer draws one artifact.
type Renderer interface {
	// Name identifies the renderer (e.g. "facility-map", "fallback").
	Name() string
	// Render returns the artifact's text rendering. payload is the artifact
	// payload narrowed by DecodePayload.
	Render(art types.Artifact, payload types.Payload) string
}

// RendererFunc adapts a function to Renderer.
type RendererFunc struct {
	name string
	fn   func(types.Artifact, types.Payload) string
}

// NewRendererFunc creates a named function renderer.
func NewRendererFunc(name string, fn func(types.Artifact, types.Payload) string) RendererFunc {
	return RendererFunc{name: name, fn: fn}
}

// Name implements Renderer.
func (r RendererFunc) Name() string { return r.name }

// Render implements Renderer.
func (r RendererFunc) Render(art types.Artifact, payload types.Payload) string {
	return r.fn(art, payload)
}

// View is the selector's decision for one state snapshot.
type View struct {
	// Empty is true when there is no current artifact.
	Empty bool
	// Fallback is true when no renderer is registered for the type.
	Fallback bool
	// Renderer is the chosen renderer; nil when Empty.
	Renderer Renderer
	// Artifact is a copy of the current artifact.
	Artifact types.Artifact
	// Payload is the narrowed payload.
	Payload types.Payload
}

// Render draws the view. An empty view renders as "".
func (v View) Render() string {
	if v.Empty || v.Renderer == nil {
		return ""
	}
	return v.Renderer.Render(v.Artifact, v.Payload)
}

// Selector picks a renderer for the current artifact.
// Safe for concurrent use.
type Selector struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	fallback  Renderer
}

// NewSelector creates a selector with the built-in renderers registered.
func NewSelector() *Selector {
	s := NewEmptySelector(FallbackRenderer())
	for typ, r := range BuiltinRenderers() {
		s.Register(typ, r)
	}
	return s
}

// NewEmptySelector creates a selector with no registered renderers.
// A nil fallback uses FallbackRenderer.
func NewEmptySelector(fallback Renderer) *Selector {
	if fallback == nil {
		fallback = FallbackRenderer()
	}
	return &Selector{renderers: make(map[string]Renderer), fallback: fallback}
}

// Register adds or replaces the renderer for an artifact type.
func (s *Selector) Register(artifactType string, r Renderer) {
	s.mu.Lock()
	s.renderers[artifactType] = r
	s.mu.Unlock()
}

// Lookup returns the renderer for artifactType and whether it is a
// registered one rather than the fallback.
func (s *Selector) Lookup(artifactType string) (Renderer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.renderers[artifactType]; ok {
		return r, true
	}
	return s.fallback, false
}

// Select returns the view for state. It never fails: unknown, empty or
// malformed artifacts select the fallback renderer.
func (s *Selector) Select(state stream.State) View {
	if state.Current == nil {
		return View{Empty: true}
	}
	art := state.Current.Clone()
	r, known := s.Lookup(art.Type)
	return View{
		Fallback: !known,
		Renderer: r,
		Artifact: art,
		Payload:  DecodePayload(art.Type, art.Payload),
	}
}

// RenderArtifact draws art as if it were the current artifact.
func (s *Selector) RenderArtifact(art types.Artifact) string {
	return s.Select(stream.State{Current: &art}).Render()
}
