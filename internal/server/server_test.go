package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/chatraum/internal/config"
	"github.com/codefionn/chatraum/internal/protocol"
)

func startTestServer(t *testing.T, st MessageStore) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"

	srv := New(cfg, st)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Errorf("Failed to stop server: %v", err)
		}
	})
	return srv
}

func dialTestServer(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *protocol.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env protocol.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return &env
}

func TestChatRoomScenario(t *testing.T) {
	st := &fakeStore{}
	srv := startTestServer(t, st)

	// A joins an empty room.
	a := dialTestServer(t, srv)
	require.NoError(t, a.WriteJSON(&protocol.Envelope{Type: protocol.TypeJoin, Username: "alice"}))

	env := readEnvelope(t, a)
	require.Equal(t, protocol.TypeHistory, env.Type)
	require.NotNil(t, env.Messages)
	assert.Empty(t, *env.Messages)

	env = readEnvelope(t, a)
	require.Equal(t, protocol.TypeSystemMessage, env.Type)
	assert.Equal(t, "Welcome to the chat room, alice!", env.Message)

	env = readEnvelope(t, a)
	require.Equal(t, protocol.TypeUserCount, env.Type)
	assert.Equal(t, 1, *env.Count)

	env = readEnvelope(t, a) // room-wide count broadcast
	require.Equal(t, protocol.TypeUserCount, env.Type)
	assert.Equal(t, 1, *env.Count)

	// B joins; A is told, B is not told about itself.
	b := dialTestServer(t, srv)
	require.NoError(t, b.WriteJSON(&protocol.Envelope{Type: protocol.TypeJoin, Username: "bob"}))

	env = readEnvelope(t, a)
	require.Equal(t, protocol.TypeUserJoined, env.Type)
	assert.Equal(t, "bob", env.Username)

	env = readEnvelope(t, a)
	require.Equal(t, protocol.TypeUserCount, env.Type)
	assert.Equal(t, 2, *env.Count)

	for _, wantType := range []string{
		protocol.TypeHistory,
		protocol.TypeSystemMessage,
		protocol.TypeUserCount,
		protocol.TypeUserCount,
	} {
		env = readEnvelope(t, b)
		assert.Equal(t, wantType, env.Type)
	}

	// A chats; both sides receive the same stored message, sender included.
	require.NoError(t, a.WriteJSON(&protocol.Envelope{Type: protocol.TypeChat, Text: "hi"}))

	for _, conn := range []*websocket.Conn{a, b} {
		env = readEnvelope(t, conn)
		require.Equal(t, protocol.TypeChat, env.Type)
		assert.Equal(t, "alice", env.Username)
		assert.Equal(t, "hi", env.Message)
		require.NotNil(t, env.Timestamp)
	}

	// B leaves; A sees the count drop, then the departure.
	require.NoError(t, b.Close())

	env = readEnvelope(t, a)
	require.Equal(t, protocol.TypeUserCount, env.Type)
	assert.Equal(t, 1, *env.Count)

	env = readEnvelope(t, a)
	require.Equal(t, protocol.TypeUserLeft, env.Type)
	assert.Equal(t, "bob", env.Username)
}

func TestChatErrorEnvelopeOverSocket(t *testing.T) {
	srv := startTestServer(t, &fakeStore{})

	conn := dialTestServer(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{{")))

	env := readEnvelope(t, conn)
	require.Equal(t, protocol.TypeError, env.Type)
	assert.Equal(t, "Invalid message format", env.Message)

	// The connection survives the protocol error.
	require.NoError(t, conn.WriteJSON(&protocol.Envelope{Type: protocol.TypeJoin, Username: "alice"}))
	env = readEnvelope(t, conn)
	assert.Equal(t, protocol.TypeHistory, env.Type)
}

func TestHealthEndpoint(t *testing.T) {
	srv := startTestServer(t, &fakeStore{})

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, "Server is healthy", body.Message)
}

func TestChatInfoEndpoint(t *testing.T) {
	srv := startTestServer(t, &fakeStore{})

	// Empty room reports an empty list, not null.
	resp, err := http.Get("http://" + srv.Addr() + "/chat/info")
	require.NoError(t, err)
	var info struct {
		ConnectedUsers int      `json:"connectedUsers"`
		Usernames      []string `json:"usernames"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.Equal(t, 0, info.ConnectedUsers)
	require.NotNil(t, info.Usernames)
	assert.Empty(t, info.Usernames)

	conn := dialTestServer(t, srv)
	require.NoError(t, conn.WriteJSON(&protocol.Envelope{Type: protocol.TypeJoin, Username: "alice"}))
	readEnvelope(t, conn) // history; join has completed server-side

	resp, err = http.Get("http://" + srv.Addr() + "/chat/info")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()

	assert.Equal(t, 1, info.ConnectedUsers)
	assert.Equal(t, []string{"alice"}, info.Usernames)
}
