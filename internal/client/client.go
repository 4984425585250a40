// Package client implements the chat-room client: one logical websocket
// connection with automatic exponential-backoff reconnection, plus the
// observable session state a UI renders from.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/chatraum/internal/logger"
	"github.com/codefionn/chatraum/internal/protocol"
)

// State represents the current state of the connection
type State int

const (
	// StateDisconnected indicates no connection and no pending retry. It is
	// both the initial state and the result of an explicit Disconnect.
	StateDisconnected State = iota
	// StateConnecting indicates a dial is in flight
	StateConnecting
	// StateConnected indicates a live connection
	StateConnected
	// StateReconnecting indicates a retry timer is pending after a drop
	StateReconnecting
	// StateGaveUp indicates all retry attempts are spent; no further
	// automatic attempts happen
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by JoinRoom and SendChat when there is no live
// connection. Sends are never queued for later.
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws
	URL string
	// HandshakeTimeout bounds each dial attempt
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each outbound write
	WriteTimeout time.Duration
	// MaxReconnectAttempts caps automatic reconnection
	MaxReconnectAttempts int
	// BackoffUnit scales the reconnect delay: attempt n waits 2^n units
	BackoffUnit time.Duration
}

// DefaultConfig returns the default configuration for the given endpoint:
// five reconnect attempts at 2s, 4s, 8s, 16s and 32s.
func DefaultConfig(url string) *Config {
	return &Config{
		URL:                  url,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		MaxReconnectAttempts: 5,
		BackoffUnit:          time.Second,
	}
}

// backoffDelay returns the wait before reconnect attempt n (1-based).
func backoffDelay(attempt int, unit time.Duration) time.Duration {
	return unit << uint(attempt)
}

// Client owns one logical chat connection. All state transitions are
// serialized by one mutex; at most one reconnect timer is ever pending, and
// Disconnect cancels it deterministically.
type Client struct {
	cfg *Config
	log *logger.Logger

	onEvent        func(Event)
	onStateChanged func(State)

	writeMu sync.Mutex

	mu               sync.Mutex
	state            State
	conn             *websocket.Conn
	attempts         int
	pendingReconnect *time.Timer

	inRoom    bool
	username  string
	userCount int
	events    []Event
}

// New creates a client for the given configuration. Call Connect to open the
// transport.
func New(cfg *Config) *Client {
	return &Client{
		cfg:   cfg,
		state: StateDisconnected,
		log:   logger.Global().WithPrefix("client"),
	}
}

// SetEventCallback registers a callback invoked for every classified inbound
// event. Must be set before Connect.
func (c *Client) SetEventCallback(fn func(Event)) {
	c.onEvent = fn
}

// SetStateChangedCallback registers a callback invoked on every state
// transition. Must be set before Connect.
func (c *Client) SetStateChangedCallback(fn func(State)) {
	c.onStateChanged = fn
}

// Connect opens the transport. It returns immediately; progress is reported
// through the state callback. Connecting an already-active client is an
// error, but a client that gave up may be connected again.
func (c *Client) Connect() error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected, StateGaveUp:
	default:
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.attempts = 0
	c.state = StateConnecting
	cb := c.onStateChanged
	c.mu.Unlock()

	if cb != nil {
		cb(StateConnecting)
	}
	go c.dial()
	return nil
}

// dial performs one connection attempt. The caller has already moved the
// state to Connecting.
func (c *Client) dial() {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.Dial(c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.log.Warn("dial %s failed: %v", c.cfg.URL, err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect raced the dial; drop the fresh connection.
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.attempts = 0
	c.state = StateConnected
	cb := c.onStateChanged
	c.mu.Unlock()

	if cb != nil {
		cb(StateConnected)
	}
	c.log.Info("connected to %s", c.cfg.URL)
	go c.readLoop(conn)
}

// readLoop pumps inbound envelopes until the connection dies.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleConnectionLoss(conn, err)
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("discarding undecodable envelope: %v", err)
			continue
		}
		c.handleEnvelope(&env)
	}
}

// handleConnectionLoss reacts to a dead transport. Stale readers (a
// connection already replaced or closed by Disconnect) are ignored.
func (c *Client) handleConnectionLoss(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	c.log.Warn("connection lost: %v", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer, or gives up once all
// attempts are spent. A user Disconnect always wins over a pending retry.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected || c.state == StateGaveUp {
		c.mu.Unlock()
		return
	}

	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.state = StateGaveUp
		cb := c.onStateChanged
		c.mu.Unlock()

		c.log.Error("giving up after %d reconnect attempts", c.cfg.MaxReconnectAttempts)
		if cb != nil {
			cb(StateGaveUp)
		}
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := backoffDelay(attempt, c.cfg.BackoffUnit)
	c.state = StateReconnecting
	if c.pendingReconnect != nil {
		c.pendingReconnect.Stop()
	}
	c.pendingReconnect = time.AfterFunc(delay, c.retry)
	cb := c.onStateChanged
	c.mu.Unlock()

	c.log.Info("reconnect attempt %d/%d in %s", attempt, c.cfg.MaxReconnectAttempts, delay)
	if cb != nil {
		cb(StateReconnecting)
	}
}

// retry fires when the backoff timer elapses.
func (c *Client) retry() {
	c.mu.Lock()
	c.pendingReconnect = nil
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	cb := c.onStateChanged
	c.mu.Unlock()

	if cb != nil {
		cb(StateConnecting)
	}
	c.dial()
}

// Disconnect is an explicit user action: it cancels any pending reconnect,
// closes the transport and resets the session. Safe to call from any state,
// including mid-backoff; afterwards the client is Disconnected until the
// next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.pendingReconnect != nil {
		c.pendingReconnect.Stop()
		c.pendingReconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.attempts = 0
	prev := c.state
	c.state = StateDisconnected

	c.inRoom = false
	c.username = ""
	c.userCount = 0
	c.events = nil
	cb := c.onStateChanged
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}

	if prev != StateDisconnected && cb != nil {
		cb(StateDisconnected)
	}
	c.log.Info("disconnected")
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is currently live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// ReconnectAttempts returns the number of consecutive failed attempts.
func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// JoinRoom sends the join envelope. It is rejected when the transport is not
// connected; callers are expected to invite this action only while
// connected.
func (c *Client) JoinRoom(username string) error {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		c.log.Warn("join rejected: not connected")
		return ErrNotConnected
	}
	conn := c.conn
	c.username = strings.TrimSpace(username)
	c.inRoom = true
	c.mu.Unlock()

	return c.writeEnvelope(conn, &protocol.Envelope{Type: protocol.TypeJoin, Username: username})
}

// SendChat sends a chat message. Rejected when not connected; nothing is
// queued.
func (c *Client) SendChat(text string) error {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		c.log.Warn("chat rejected: not connected")
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	return c.writeEnvelope(conn, &protocol.Envelope{Type: protocol.TypeChat, Text: text})
}

func (c *Client) writeEnvelope(conn *websocket.Conn, env *protocol.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s envelope: %w", env.Type, err)
	}
	return nil
}
