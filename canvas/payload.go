package canvas

import (
	"encoding/json"

	"github.com/pithecene-io/vantage/types"
)

// DecodePayload narrows an opaque artifact payload to the schema of its
// artifact type. Unknown types, and payloads that do not fit their type's
// schema, return an *types.OpaquePayload carrying the raw value. It never
// fails: a renderable value is always returned.
//
// Streaming payloads are partial; absent fields decode as zero values.
func DecodePayload(artifactType string, raw any) types.Payload {
	var target types.Payload
	switch artifactType {
	case types.ArtifactFacilityMap:
		target = &types.FacilityMapPayload{}
	case types.ArtifactMedicalDesert:
		target = &types.MedicalDesertPayload{}
	case types.ArtifactStatsDashboard:
		target = &types.StatsDashboardPayload{}
	case types.ArtifactMissionPlan:
		target = &types.MissionPlanPayload{}
	default:
		return &types.OpaquePayload{Type: artifactType, Raw: raw}
	}

	if _, isRecord := raw.(map[string]any); !isRecord && raw != nil {
		return &types.OpaquePayload{Type: artifactType, Raw: raw}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return &types.OpaquePayload{Type: artifactType, Raw: raw}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &types.OpaquePayload{Type: artifactType, Raw: raw}
	}
	return target
}
