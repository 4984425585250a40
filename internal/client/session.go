package client

import (
	"fmt"
	"time"

	"github.com/codefionn/chatraum/internal/protocol"
)

// EventKind classifies inbound envelopes into the categories a UI cares
// about.
type EventKind int

const (
	// EventHistory replays persisted messages on join
	EventHistory EventKind = iota
	// EventSystem is a server-generated announcement
	EventSystem
	// EventPresenceJoined reports another user joining
	EventPresenceJoined
	// EventPresenceLeft reports another user leaving
	EventPresenceLeft
	// EventUserCount reports the current room size
	EventUserCount
	// EventChat is a chat message from any user, the local one included
	EventChat
	// EventError is an error reported by the server
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventHistory:
		return "history"
	case EventSystem:
		return "system"
	case EventPresenceJoined:
		return "presence-joined"
	case EventPresenceLeft:
		return "presence-left"
	case EventUserCount:
		return "user-count"
	case EventChat:
		return "chat"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one classified inbound envelope.
type Event struct {
	Kind      EventKind
	Username  string
	Text      string
	Count     int
	Timestamp time.Time
	// History carries the replayed messages for EventHistory.
	History []protocol.ChatMessage
}

// Session is a point-in-time snapshot of the observable client state.
type Session struct {
	State     State
	Connected bool
	InRoom    bool
	Username  string
	UserCount int
	Log       []Event
}

// Session returns a snapshot safe to read while the client keeps running.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := make([]Event, len(c.events))
	copy(log, c.events)

	return Session{
		State:     c.state,
		Connected: c.state == StateConnected,
		InRoom:    c.inRoom,
		Username:  c.username,
		UserCount: c.userCount,
		Log:       log,
	}
}

// handleEnvelope classifies one inbound envelope, updates the session and
// notifies the event callback. It runs on the read loop; the session update
// itself is a short critical section so the receive path never stalls.
func (c *Client) handleEnvelope(env *protocol.Envelope) {
	ts := time.Now().UTC()
	if env.Timestamp != nil {
		ts = *env.Timestamp
	}

	var ev Event

	switch env.Type {
	case protocol.TypeHistory:
		var replay []protocol.ChatMessage
		if env.Messages != nil {
			replay = *env.Messages
		}
		ev = Event{Kind: EventHistory, Timestamp: ts, History: replay}

	case protocol.TypeSystemMessage:
		ev = Event{Kind: EventSystem, Text: env.Message, Timestamp: ts}

	case protocol.TypeUserJoined:
		ev = Event{
			Kind:      EventPresenceJoined,
			Username:  env.Username,
			Text:      fmt.Sprintf("%s joined the room", env.Username),
			Timestamp: ts,
		}

	case protocol.TypeUserLeft:
		ev = Event{
			Kind:      EventPresenceLeft,
			Username:  env.Username,
			Text:      fmt.Sprintf("%s left the room", env.Username),
			Timestamp: ts,
		}

	case protocol.TypeUserCount:
		count := 0
		if env.Count != nil {
			count = *env.Count
		}
		ev = Event{Kind: EventUserCount, Count: count, Timestamp: ts}

	case protocol.TypeChat:
		ev = Event{Kind: EventChat, Username: env.Username, Text: env.Message, Timestamp: ts}

	case protocol.TypeError:
		ev = Event{Kind: EventError, Text: env.Message, Timestamp: ts}

	default:
		c.log.Warn("unknown envelope type: %s", env.Type)
		return
	}

	c.apply(ev)

	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

// apply folds one event into the session state.
func (c *Client) apply(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case EventHistory:
		// History replaces the log with the replayed messages.
		c.events = make([]Event, 0, len(ev.History))
		for _, m := range ev.History {
			c.events = append(c.events, Event{
				Kind:      EventChat,
				Username:  m.Username,
				Text:      m.Text,
				Timestamp: m.Timestamp,
			})
		}

	case EventUserCount:
		c.userCount = ev.Count

	default:
		c.events = append(c.events, ev)
	}
}
