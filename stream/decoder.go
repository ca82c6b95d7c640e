package stream

import (
	"strconv"

	"github.com/pithecene-io/vantage/types"
)

// Dispatch receives decoded actions.
type Dispatch func(Action)

// ProcessPart translates one inbound data part into at most one action.
//
// It returns true if the part carried one of the four artifact wire tags
// (and exactly one action was dispatched), false otherwise. Callers forward
// parts that return false to other consumers. Data fields are read from a
// loose record and flow through to the reducer unvalidated. Scalar id,
// artifactType and error values keep their textual form (7 reads as "7");
// missing fields and records or lists read as "".
func ProcessPart(part types.DataPart, dispatch Dispatch) bool {
	if !part.Type.IsArtifact() {
		return false
	}

	action, _ := DecodePart(part)
	dispatch(action)
	return true
}

// DecodePart returns the action an artifact part maps to. The second return
// is false for parts that are not artifact parts.
func DecodePart(part types.DataPart) (Action, bool) {
	data := asRecord(part.Data)
	id := stringField(data, "id")
	artifactType := stringField(data, "artifactType")

	switch part.Type {
	case types.PartArtifactStream:
		return Stream(id, artifactType, data["payload"]), true
	case types.PartArtifactUpdate:
		return Update(id, artifactType, data["payload"]), true
	case types.PartArtifactComplete:
		return Complete(id, artifactType, data["payload"]), true
	case types.PartArtifactError:
		return Fail(id, artifactType, stringField(data, "error")), true
	default:
		return Action{}, false
	}
}

// asRecord views a part's data as a record. The JSON and msgpack codecs produce
// map[string]any; anything else reads as an empty record.
func asRecord(v any) map[string]any {
	switch rec := v.(type) {
	case map[string]any:
		return rec
	case map[any]any:
		out := make(map[string]any, len(rec))
		for k, val := range rec {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out
	default:
		return map[string]any{}
	}
}

func stringField(rec map[string]any, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8, int16, int32, int64:
		return strconv.FormatInt(asInt64(v), 10)
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(asUint64(v), 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return v.(int64)
	}
}

func asUint64(v any) uint64 {
	switch n := v.(type) {
	case uint:
		return uint64(n)
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	default:
		return v.(uint64)
	}
}
