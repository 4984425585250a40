package server

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/chatraum/internal/logger"
	"github.com/codefionn/chatraum/internal/protocol"
)

// ErrInvalidUsername is returned by Register for empty or whitespace-only
// usernames.
var ErrInvalidUsername = errors.New("invalid username")

// Member is the identity bound to a joined connection.
type Member struct {
	Username string
	JoinedAt time.Time
}

// Hub tracks joined connections and fans envelopes out to them. It is the
// single source of truth for who is in the room: a client appears here after
// a successful join and disappears on unregister. One lock serializes
// registry mutation against broadcast membership reads.
//
// Display names are not unique across connections; two clients may join with
// the same name. That matches the upstream behavior and is a documented
// limitation, not something the hub tries to fix.
type Hub struct {
	mu      sync.RWMutex
	members map[*Client]Member
	log     *logger.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		members: make(map[*Client]Member),
		log:     logger.Global().WithPrefix("hub"),
	}
}

// Register binds the trimmed username to the client. Registering an already
// joined client replaces its entry. The username must be non-empty after
// trimming.
func (h *Hub) Register(c *Client, username string) error {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return ErrInvalidUsername
	}

	h.mu.Lock()
	h.members[c] = Member{Username: trimmed, JoinedAt: time.Now().UTC()}
	h.mu.Unlock()

	h.log.Debug("registered %s as %q", c.ID, trimmed)
	return nil
}

// Unregister removes the client's entry and reports the member that was
// bound to it. Unregistering an unknown client is a no-op, so double closes
// are harmless.
func (h *Hub) Unregister(c *Client) (Member, bool) {
	h.mu.Lock()
	member, ok := h.members[c]
	if ok {
		delete(h.members, c)
	}
	h.mu.Unlock()

	if ok {
		h.log.Debug("unregistered %s (%s)", c.ID, member.Username)
	}
	return member, ok
}

// Member returns the identity bound to the client, if it has joined.
func (h *Hub) Member(c *Client) (Member, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	member, ok := h.members[c]
	return member, ok
}

// Count returns the number of joined connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Usernames returns the display names of all joined connections, in no
// particular order.
func (h *Hub) Usernames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.members))
	for _, m := range h.members {
		names = append(names, m.Username)
	}
	return names
}

// Broadcast queues the envelope for every joined connection except exclude.
// Delivery is fire and forget: a client whose send buffer is full misses the
// envelope and the failure is only logged, so one slow connection never
// stalls the rest of the room. Dead connections are reaped by their own read
// pumps, not here.
func (h *Hub) Broadcast(env *protocol.Envelope, exclude *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.members {
		if c == exclude {
			continue
		}
		select {
		case c.send <- env:
		default:
			h.log.Warn("dropping %s envelope for %s: send buffer full", env.Type, c.ID)
		}
	}
}
