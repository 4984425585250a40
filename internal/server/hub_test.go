package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/chatraum/internal/protocol"
)

func TestRegisterValidatesUsername(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, &fakeStore{})

	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"plain", "alice", false},
		{"needs trim", "  bob  ", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"tab and newline", "\t\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hub.Register(c, tt.username)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidUsername)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterTrimsIdentity(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, &fakeStore{})

	require.NoError(t, hub.Register(c, "  bob  "))

	member, ok := hub.Member(c)
	require.True(t, ok)
	assert.Equal(t, "bob", member.Username)
	assert.False(t, member.JoinedAt.IsZero())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, &fakeStore{})

	_, ok := hub.Unregister(c)
	assert.False(t, ok)

	require.NoError(t, hub.Register(c, "alice"))
	member, ok := hub.Unregister(c)
	assert.True(t, ok)
	assert.Equal(t, "alice", member.Username)

	// Second unregister after a double close is a no-op.
	_, ok = hub.Unregister(c)
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Count())
}

func TestDuplicateDisplayNamesAllowed(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, &fakeStore{})
	b := newTestClient(hub, &fakeStore{})

	require.NoError(t, hub.Register(a, "alice"))
	require.NoError(t, hub.Register(b, "alice"))

	assert.Equal(t, 2, hub.Count())
	assert.ElementsMatch(t, []string{"alice", "alice"}, hub.Usernames())
}

func TestReRegisterReplacesEntry(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, &fakeStore{})

	require.NoError(t, hub.Register(c, "alice"))
	require.NoError(t, hub.Register(c, "alicia"))

	assert.Equal(t, 1, hub.Count())
	member, _ := hub.Member(c)
	assert.Equal(t, "alicia", member.Username)
}

func TestBroadcastReachesAllExceptExcluded(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, &fakeStore{})
	b := newTestClient(hub, &fakeStore{})
	c := newTestClient(hub, &fakeStore{})

	require.NoError(t, hub.Register(a, "a"))
	require.NoError(t, hub.Register(b, "b"))
	require.NoError(t, hub.Register(c, "c"))

	hub.Broadcast(protocol.NewSystemMessage("hello"), b)

	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 0)
	assert.Len(t, c.send, 1)
}

func TestBroadcastSkipsUnjoinedClients(t *testing.T) {
	hub := NewHub()
	joined := newTestClient(hub, &fakeStore{})
	unjoined := newTestClient(hub, &fakeStore{})

	require.NoError(t, hub.Register(joined, "alice"))

	hub.Broadcast(protocol.NewSystemMessage("hello"), nil)

	assert.Len(t, joined.send, 1)
	assert.Len(t, unjoined.send, 0)
}

func TestBroadcastDropsOnFullBufferWithoutBlocking(t *testing.T) {
	hub := NewHub()
	stuck := newTestClient(hub, &fakeStore{})
	stuck.send = make(chan *protocol.Envelope) // no capacity, no reader
	healthy := newTestClient(hub, &fakeStore{})

	require.NoError(t, hub.Register(stuck, "stuck"))
	require.NoError(t, hub.Register(healthy, "healthy"))

	done := make(chan struct{})
	go func() {
		hub.Broadcast(protocol.NewSystemMessage("hello"), nil)
		close(done)
	}()

	select {
	case <-done:
	case <-timeout(t):
		t.Fatal("broadcast blocked on a stuck connection")
	}
	assert.Len(t, healthy.send, 1)
}
