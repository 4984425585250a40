// Package protocol defines the JSON envelopes exchanged between the chat
// server and its clients. Both internal/server and internal/client depend on
// this package so the wire shapes live in exactly one place.
package protocol

import "time"

// Envelope type constants
const (
	// Inbound (client to server)
	TypeJoin = "join"
	TypeChat = "chat" // also outbound

	// Outbound (server to client)
	TypeHistory       = "history"
	TypeSystemMessage = "system_message"
	TypeUserJoined    = "user_joined"
	TypeUserLeft      = "user_left"
	TypeUserCount     = "user_count"
	TypeError         = "error"
)

// ChatMessage is the wire form of a persisted chat message.
type ChatMessage struct {
	Username  string    `json:"username"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is the tagged message exchanged over the websocket. One struct
// covers every envelope type; unused fields are omitted from the JSON.
// Count and Messages are pointers so that zero counts and empty history
// still serialize (omitempty would swallow them).
type Envelope struct {
	Type      string         `json:"type"`
	Username  string         `json:"username,omitempty"`
	Text      string         `json:"text,omitempty"`
	Message   string         `json:"message,omitempty"`
	Messages  *[]ChatMessage `json:"messages,omitempty"`
	Count     *int           `json:"count,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

// NewError builds an error envelope. Error envelopes carry no timestamp.
func NewError(message string) *Envelope {
	return &Envelope{Type: TypeError, Message: message}
}

// NewSystemMessage builds a system_message envelope.
func NewSystemMessage(message string) *Envelope {
	return &Envelope{Type: TypeSystemMessage, Message: message, Timestamp: now()}
}

// NewUserJoined builds a user_joined envelope.
func NewUserJoined(username string) *Envelope {
	return &Envelope{Type: TypeUserJoined, Username: username, Timestamp: now()}
}

// NewUserLeft builds a user_left envelope.
func NewUserLeft(username string) *Envelope {
	return &Envelope{Type: TypeUserLeft, Username: username, Timestamp: now()}
}

// NewUserCount builds a user_count envelope.
func NewUserCount(count int) *Envelope {
	return &Envelope{Type: TypeUserCount, Count: &count}
}

// NewChat builds a chat envelope from a persisted message. The timestamp is
// the storage timestamp so every client sees the same value.
func NewChat(msg ChatMessage) *Envelope {
	ts := msg.Timestamp
	return &Envelope{Type: TypeChat, Username: msg.Username, Message: msg.Text, Timestamp: &ts}
}

// NewHistory builds a history envelope. A nil slice becomes an empty JSON
// array rather than a missing field.
func NewHistory(messages []ChatMessage) *Envelope {
	if messages == nil {
		messages = []ChatMessage{}
	}
	return &Envelope{Type: TypeHistory, Messages: &messages}
}

func now() *time.Time {
	ts := time.Now().UTC()
	return &ts
}
