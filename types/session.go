package types

import "github.com/google/uuid"

// SessionMeta identifies one chat session.
//
// SessionID is the key the session registry and archive use. ChatID is the
// id of the chat currently shown in the session's page; it changes when the
// user navigates to a different chat.
type SessionMeta struct {
	SessionID string `json:"session_id" msgpack:"session_id"`
	ChatID    string `json:"chat_id,omitempty" msgpack:"chat_id,omitempty"`
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}
