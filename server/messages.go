package server

import (
	"errors"

	"github.com/pithecene-io/vantage/canvas"
	"github.com/pithecene-io/vantage/types"
)

// Server message types.
const (
	MessageState = "state"
	MessagePong  = "pong"
	MessageError = "error"
	MessageAck   = "ack"
)

// Client message types.
const (
	ClientPing     = "ping"
	ClientPart     = "part"
	ClientNavigate = "navigate"
	ClientSelect   = "select"
	ClientReset    = "reset"
	ClientDismiss  = "dismiss"
	ClientOpen     = "open"
)

var errChatIDRequired = errors.New("chatId is required")

// SessionView is everything a client needs to draw one session.
type SessionView struct {
	SessionID string            `json:"session_id"`
	ChatID    string            `json:"chat_id,omitempty"`
	Panel     canvas.PanelState `json:"panel"`
	Current   *types.Artifact   `json:"current,omitempty"`
	// Renderer names the renderer chosen for the current artifact.
	Renderer string        `json:"renderer,omitempty"`
	Fallback bool          `json:"fallback"`
	Types    []string      `json:"types"`
	Tabs     []canvas.Tab  `json:"tabs"`
	Cards    []canvas.Card `json:"cards"`
}

// ServerMessage is sent to websocket clients.
type ServerMessage struct {
	Type  string       `json:"type"`
	State *SessionView `json:"state,omitempty"`
	Error string       `json:"error,omitempty"`
	Seq   int64        `json:"seq,omitempty"`
}

// ClientMessage is received from websocket clients.
type ClientMessage struct {
	Type   string          `json:"type"`
	Part   *types.DataPart `json:"part,omitempty"`
	ID     string          `json:"id,omitempty"`
	ChatID string          `json:"chatId,omitempty"`
}
