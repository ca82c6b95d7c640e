package types

// PartType is the type tag of an inbound data part.
type PartType string

// Artifact wire tags. These are the only part types the artifact stream
// recognizes; every other tag belongs to other consumers.
const (
	PartArtifactStream   PartType = "data-artifact-stream"
	PartArtifactUpdate   PartType = "data-artifact-update"
	PartArtifactComplete PartType = "data-artifact-complete"
	PartArtifactError    PartType = "data-artifact-error"
)

// PartSessionNavigate is a control part used in recorded streams to mark
// navigation to a different chat. It is never dispatched to the reducer.
const PartSessionNavigate PartType = "session-navigate"

// IsArtifact returns true if the tag is one of the four artifact wire tags.
func (t PartType) IsArtifact() bool {
	switch t {
	case PartArtifactStream, PartArtifactUpdate, PartArtifactComplete, PartArtifactError:
		return true
	default:
		return false
	}
}

// IsControl returns true for control parts handled by the ingestion engine.
func (t PartType) IsControl() bool {
	return t == PartSessionNavigate
}

// DataPart is one inbound chunk of the chat message stream.
//
// Data is a loosely typed value; for artifact parts it is a record with
// id, artifactType, payload and error fields. Field names use the camelCase
// spelling of the transport.
type DataPart struct {
	// Type is the discriminator.
	Type PartType `json:"type" msgpack:"type"`
	// ID is the optional part id assigned by the transport.
	ID string `json:"id,omitempty" msgpack:"id,omitempty"`
	// Data is the part payload.
	Data any `json:"data,omitempty" msgpack:"data,omitempty"`
	// Transient parts are delivered live but never persisted.
	Transient bool `json:"transient,omitempty" msgpack:"transient,omitempty"`
}

// ArtifactPartData is the typed view of an artifact part's data record.
// It is used by producers and tests; the decoder reads the loose record.
type ArtifactPartData struct {
	ID           string `json:"id" msgpack:"id"`
	ArtifactType string `json:"artifactType" msgpack:"artifactType"`
	Payload      any    `json:"payload,omitempty" msgpack:"payload,omitempty"`
	Error        string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Record converts the typed data to the loose record carried on the wire.
func (d ArtifactPartData) Record() map[string]any {
	rec := map[string]any{
		"id":           d.ID,
		"artifactType": d.ArtifactType,
	}
	if d.Payload != nil {
		rec["payload"] = d.Payload
	}
	if d.Error != "" {
		rec["error"] = d.Error
	}
	return rec
}

// NewArtifactPart builds an artifact data part for the given tag.
func NewArtifactPart(tag PartType, data ArtifactPartData) DataPart {
	return DataPart{Type: tag, Data: data.Record()}
}

// NavigatePayload is the data record of a session-navigate control part.
type NavigatePayload struct {
	ChatID string `json:"chatId" msgpack:"chatId"`
}
