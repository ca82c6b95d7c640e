// Package types defines core domain types for the vantage artifact stream.
//
//nolint:revive // types is a common Go package naming convention
package types

import "maps"

// ArtifactStatus is the lifecycle status of an artifact.
type ArtifactStatus string

// Artifact lifecycle statuses.
const (
	StatusStreaming ArtifactStatus = "streaming"
	StatusComplete  ArtifactStatus = "complete"
	StatusError     ArtifactStatus = "error"
)

// IsTerminal returns true if no further payload changes are expected.
// A terminal artifact can still be revived by an update event.
func (s ArtifactStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Known artifact types consumed by the built-in canvas renderers.
// The set is open: producers may emit other types, which render via fallback.
const (
	ArtifactFacilityMap    = "facility-map"
	ArtifactMedicalDesert  = "medical-desert"
	ArtifactStatsDashboard = "stats-dashboard"
	ArtifactMissionPlan    = "mission-plan"
)

// KnownArtifactTypes returns the artifact types with built-in renderers.
func KnownArtifactTypes() []string {
	return []string{
		ArtifactFacilityMap,
		ArtifactMedicalDesert,
		ArtifactStatsDashboard,
		ArtifactMissionPlan,
	}
}

// Artifact is one streamed visualization unit.
//
// ID is assigned by the producer on the stream event and never changes.
// Payload is opaque here; its shape is determined by Type. During streaming
// it is partial; at completion it is whatever the complete event carried.
type Artifact struct {
	// ID correlates every event of one logical artifact.
	ID string `json:"id" yaml:"id" msgpack:"id"`
	// Type selects the renderer.
	Type string `json:"type" yaml:"type" msgpack:"type"`
	// Payload is the type-specific payload.
	Payload any `json:"payload" yaml:"payload" msgpack:"payload"`
	// Status is the lifecycle status.
	Status ArtifactStatus `json:"status" yaml:"status" msgpack:"status"`
	// Error is set only when Status is StatusError.
	Error string `json:"error,omitempty" yaml:"error,omitempty" msgpack:"error,omitempty"`
}

// Clone returns a copy of the artifact whose top-level payload record, if
// any, is not shared with the receiver. Nested values are shared.
func (a Artifact) Clone() Artifact {
	if rec, ok := a.Payload.(map[string]any); ok && rec != nil {
		a.Payload = maps.Clone(rec)
	}
	return a
}
