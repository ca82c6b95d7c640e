// Package stream implements the artifact stream state machine.
//
// Reduce folds one Action into an immutable State snapshot. It performs no
// I/O, never panics and is total over every (State, Action) pair. ProcessPart
// decodes inbound data parts into Actions.
//
// Invariants:
//   - At most one current artifact. A stream action replaces it wholesale.
//   - Types is append-only, duplicate-free, in first-seen order, and only
//     grows on stream actions.
//   - update and error apply only when their id matches the current artifact.
//   - complete is not guarded: the latest complete always becomes current.
//   - Snapshots are never mutated after Reduce returns them.
package stream

import (
	"maps"
	"slices"

	"github.com/pithecene-io/vantage/types"
)

// ActionKind discriminates reducer actions.
type ActionKind int

// Action kinds.
const (
	ActionStream ActionKind = iota + 1
	ActionUpdate
	ActionComplete
	ActionError
	ActionReset
	ActionSelect
)

var actionNames = map[ActionKind]string{
	ActionStream:   "stream",
	ActionUpdate:   "update",
	ActionComplete: "complete",
	ActionError:    "error",
	ActionReset:    "reset",
	ActionSelect:   "select",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

// Action is a tagged reducer action. Which fields are meaningful depends on
// Kind; absent fields are zero values and flow through unchecked.
type Action struct {
	Kind         ActionKind
	ID           string
	ArtifactType string
	Payload      any
	Error        string
}

// Stream begins a new artifact.
func Stream(id, artifactType string, payload any) Action {
	return Action{Kind: ActionStream, ID: id, ArtifactType: artifactType, Payload: payload}
}

// Update merges an incremental payload into the current artifact.
func Update(id, artifactType string, payload any) Action {
	return Action{Kind: ActionUpdate, ID: id, ArtifactType: artifactType, Payload: payload}
}

// Complete finalizes an artifact.
func Complete(id, artifactType string, payload any) Action {
	return Action{Kind: ActionComplete, ID: id, ArtifactType: artifactType, Payload: payload}
}

// Fail marks the current artifact as errored.
func Fail(id, artifactType, message string) Action {
	return Action{Kind: ActionError, ID: id, ArtifactType: artifactType, Error: message}
}

// Reset clears all session state.
func Reset() Action {
	return Action{Kind: ActionReset}
}

// Select makes a history entry current again.
func Select(id string) Action {
	return Action{Kind: ActionSelect, ID: id}
}

// State is the session-scoped artifact stream state.
type State struct {
	// Current is the single active artifact, nil when absent.
	Current *types.Artifact `json:"current" yaml:"current"`
	// Types lists every artifact type seen on a stream action, first-seen order.
	Types []string `json:"types" yaml:"types"`
	// History holds every artifact that reached stream or complete, deduplicated by id.
	History []types.Artifact `json:"history" yaml:"history"`
}

// Initial returns the empty state.
func Initial() State {
	return State{Types: []string{}, History: []types.Artifact{}}
}

// Reduce applies action to state and returns the next snapshot.
// Unknown kinds and guarded no-ops return state unchanged.
func Reduce(state State, action Action) State {
	switch action.Kind {
	case ActionStream:
		return reduceStream(state, action)
	case ActionUpdate:
		return reduceUpdate(state, action)
	case ActionComplete:
		return reduceComplete(state, action)
	case ActionError:
		return reduceError(state, action)
	case ActionReset:
		return Initial()
	case ActionSelect:
		return reduceSelect(state, action)
	default:
		return state
	}
}

// IsStale reports whether a guarded action (update or error) targets an id
// that is not the current artifact, so Reduce leaves Current untouched.
func IsStale(state State, action Action) bool {
	switch action.Kind {
	case ActionUpdate, ActionError:
		return state.Current == nil || state.Current.ID != action.ID
	default:
		return false
	}
}

// Changed reports whether next is a different snapshot from prev. Reduce
// returns its input unchanged for every no-op, so identity is sufficient.
func Changed(prev, next State) bool {
	return prev.Current != next.Current ||
		!sameSlice(prev.Types, next.Types) ||
		!sameSlice(prev.History, next.History)
}

func sameSlice[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func reduceStream(state State, action Action) State {
	art := types.Artifact{
		ID:      action.ID,
		Type:    action.ArtifactType,
		Payload: action.Payload,
		Status:  types.StatusStreaming,
	}

	next := State{
		Current: &art,
		Types:   state.Types,
		History: upsertHistory(state.History, art),
	}
	if !slices.Contains(state.Types, action.ArtifactType) {
		next.Types = append(slices.Clone(state.Types), action.ArtifactType)
	}
	return next
}

func reduceUpdate(state State, action Action) State {
	next := state
	changed := false

	if !IsStale(state, action) {
		art := *state.Current
		art.Payload = mergePayload(art.Payload, action.Payload)
		art.Status = types.StatusStreaming
		art.Error = ""
		next.Current = &art
		changed = true
	}

	if i := historyIndex(state.History, action.ID); i >= 0 {
		entry := state.History[i]
		entry.Payload = mergePayload(entry.Payload, action.Payload)
		entry.Status = types.StatusStreaming
		entry.Error = ""
		next.History = replaceHistory(state.History, i, entry)
		changed = true
	}

	if !changed {
		return state
	}
	return next
}

func reduceComplete(state State, action Action) State {
	art := types.Artifact{
		ID:      action.ID,
		Type:    action.ArtifactType,
		Payload: action.Payload,
		Status:  types.StatusComplete,
	}
	return State{
		Current: &art,
		Types:   state.Types,
		History: upsertHistory(state.History, art),
	}
}

func reduceError(state State, action Action) State {
	next := state
	changed := false

	if !IsStale(state, action) {
		art := *state.Current
		art.Status = types.StatusError
		art.Error = action.Error
		next.Current = &art
		changed = true
	}

	if i := historyIndex(state.History, action.ID); i >= 0 {
		entry := state.History[i]
		entry.Status = types.StatusError
		entry.Error = action.Error
		next.History = replaceHistory(state.History, i, entry)
		changed = true
	}

	if !changed {
		return state
	}
	return next
}

func reduceSelect(state State, action Action) State {
	i := historyIndex(state.History, action.ID)
	if i < 0 {
		return state
	}
	art := state.History[i].Clone()
	return State{
		Current: &art,
		Types:   state.Types,
		History: state.History,
	}
}

// mergePayload shallow-merges incoming into current when current is a
// record. Incoming fields win; fields absent from incoming are kept. A
// non-record current is replaced wholesale. A non-record incoming merged
// into a record contributes no fields.
func mergePayload(current, incoming any) any {
	cur, ok := current.(map[string]any)
	if !ok || cur == nil {
		return incoming
	}
	merged := maps.Clone(cur)
	if in, ok := incoming.(map[string]any); ok {
		maps.Copy(merged, in)
	}
	return merged
}

func historyIndex(history []types.Artifact, id string) int {
	return slices.IndexFunc(history, func(a types.Artifact) bool { return a.ID == id })
}

// upsertHistory replaces the entry with art.ID in place or appends it.
func upsertHistory(history []types.Artifact, art types.Artifact) []types.Artifact {
	if i := historyIndex(history, art.ID); i >= 0 {
		return replaceHistory(history, i, art)
	}
	next := make([]types.Artifact, len(history), len(history)+1)
	copy(next, history)
	return append(next, art)
}

func replaceHistory(history []types.Artifact, i int, art types.Artifact) []types.Artifact {
	next := slices.Clone(history)
	next[i] = art
	return next
}
