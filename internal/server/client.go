package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codefionn/chatraum/internal/logger"
	"github.com/codefionn/chatraum/internal/protocol"
	"github.com/codefionn/chatraum/internal/store"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Chat text is capped well below this; the
	// headroom covers JSON framing.
	maxFrameSize = 8192

	// Outbound queue per connection. Broadcasts to a client with a full
	// queue are dropped.
	sendQueueSize = 256
)

// Client is one live websocket connection. Until a successful join it may
// only send join envelopes; afterwards its identity lives in the hub.
type Client struct {
	ID            string
	hub           *Hub
	conn          *websocket.Conn
	send          chan *protocol.Envelope
	store         MessageStore
	historyLimit  int
	maxMessageLen int
	log           *logger.Logger
	closeOnce     sync.Once
}

// NewClient wraps an upgraded websocket connection.
func NewClient(hub *Hub, conn *websocket.Conn, st MessageStore, historyLimit, maxMessageLen int) *Client {
	id := uuid.NewString()
	return &Client{
		ID:            id,
		hub:           hub,
		conn:          conn,
		send:          make(chan *protocol.Envelope, sendQueueSize),
		store:         st,
		historyLimit:  historyLimit,
		maxMessageLen: maxMessageLen,
		log:           logger.Global().WithPrefix("conn:" + id[:8]),
	}
}

// ReadPump pumps inbound envelopes from the websocket into the dispatcher.
// When the connection dies, for whatever reason, it tears the client down.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Error("read error: %v", err)
			}
			return
		}
		c.handleMessage(raw)
	}
}

// WritePump drains the send queue to the websocket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(env)
			if err != nil {
				c.log.Error("failed to marshal %s envelope: %v", env.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error("write error: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close unregisters the client, announces its departure if it had joined,
// and releases the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if member, ok := c.hub.Unregister(c); ok {
			// Count first, then the departure, matching the order joiners
			// observe on the other side.
			c.hub.Broadcast(protocol.NewUserCount(c.hub.Count()), nil)
			c.hub.Broadcast(protocol.NewUserLeft(member.Username), nil)
			c.log.Info("%s left the room", member.Username)
		}
		if c.conn != nil {
			c.conn.Close()
		}
		// No broadcast can target this client anymore: unregister completed
		// under the hub lock. Closing the queue lets the write pump flush
		// and exit.
		close(c.send)
	})
}

// handleMessage decodes one inbound envelope and dispatches it. Malformed
// input is answered with an error envelope; it never kills the connection.
func (c *Client) handleMessage(raw []byte) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		c.log.Debug("undecodable frame: %v", err)
		c.sendEnvelope(protocol.NewError("Invalid message format"))
		return
	}

	switch probe.Type {
	case protocol.TypeJoin:
		var req struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			c.sendEnvelope(protocol.NewError("Invalid username"))
			return
		}
		c.handleJoin(req.Username)

	case protocol.TypeChat:
		var req struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			c.sendEnvelope(protocol.NewError("Invalid message text"))
			return
		}
		c.handleChat(req.Text)

	default:
		c.sendEnvelope(protocol.NewError("Unknown message type"))
	}
}

// handleJoin registers the client in the room and replays recent history.
func (c *Client) handleJoin(username string) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		c.sendEnvelope(protocol.NewError("Invalid username"))
		return
	}

	if err := c.hub.Register(c, trimmed); err != nil {
		c.sendEnvelope(protocol.NewError("Invalid username"))
		return
	}

	recent, err := c.store.Recent(context.Background(), c.historyLimit)
	if err != nil {
		c.log.Error("history fetch failed: %v", err)
		c.sendEnvelope(protocol.NewError("Failed to join chat"))
		return
	}

	history := make([]protocol.ChatMessage, 0, len(recent))
	for _, m := range recent {
		history = append(history, m.Wire())
	}

	c.sendEnvelope(protocol.NewHistory(history))
	c.sendEnvelope(protocol.NewSystemMessage(fmt.Sprintf("Welcome to the chat room, %s!", trimmed)))
	c.sendEnvelope(protocol.NewUserCount(c.hub.Count()))

	// The joiner already got its welcome; everyone else learns about it here.
	c.hub.Broadcast(protocol.NewUserJoined(trimmed), c)
	c.hub.Broadcast(protocol.NewUserCount(c.hub.Count()), nil)

	c.log.Info("%s joined the room", trimmed)
}

// handleChat persists the message and fans it out to the whole room, sender
// included, so every client sees the same append order.
func (c *Client) handleChat(text string) {
	member, joined := c.hub.Member(c)
	if !joined {
		c.sendEnvelope(protocol.NewError("You must join first"))
		return
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len([]rune(trimmed)) > c.maxMessageLen {
		c.sendEnvelope(protocol.NewError("Invalid message text"))
		return
	}

	saved, err := c.store.Append(context.Background(), member.Username, trimmed)
	if err != nil {
		c.log.Error("append failed for %s: %v", member.Username, err)
		c.sendEnvelope(protocol.NewError("Failed to send message"))
		return
	}

	c.hub.Broadcast(protocol.NewChat(saved.Wire()), nil)
	c.log.Debug("chat from %s (%d chars)", member.Username, len(trimmed))
}

// sendEnvelope queues an envelope for this client only.
func (c *Client) sendEnvelope(env *protocol.Envelope) {
	select {
	case c.send <- env:
	default:
		c.log.Warn("send buffer full, dropping %s envelope", env.Type)
	}
}

// MessageStore is the persistence gateway the dispatcher talks to. The
// SQLite store implements it; tests substitute in-memory fakes.
type MessageStore interface {
	Append(ctx context.Context, username, text string) (store.Message, error)
	Recent(ctx context.Context, limit int) ([]store.Message, error)
}
