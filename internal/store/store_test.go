package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, "hello", first.Text)
	assert.False(t, first.Timestamp.IsZero())

	_, err = s.Append(ctx, "bob", "hi alice")
	require.NoError(t, err)

	messages, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// Oldest first
	assert.Equal(t, "hello", messages[0].Text)
	assert.Equal(t, "hi alice", messages[1].Text)
}

func TestRecentBoundedToLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, err := s.Append(ctx, "alice", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	messages, err := s.Recent(ctx, 50)
	require.NoError(t, err)
	require.Len(t, messages, 50)

	// The 50 most recent messages, oldest first.
	assert.Equal(t, "message 10", messages[0].Text)
	assert.Equal(t, "message 59", messages[49].Text)
}

func TestRecentEmptyStore(t *testing.T) {
	s := openTestStore(t)

	messages, err := s.Recent(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestAppendRejectsOverlongText(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "alice", strings.Repeat("x", MaxTextLen+1))
	require.ErrorIs(t, err, ErrTextTooLong)

	// Exactly at the limit is fine.
	_, err = s.Append(ctx, "alice", strings.Repeat("x", MaxTextLen))
	require.NoError(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWireConversion(t *testing.T) {
	s := openTestStore(t)

	m, err := s.Append(context.Background(), "alice", "hello")
	require.NoError(t, err)

	w := m.Wire()
	assert.Equal(t, m.Username, w.Username)
	assert.Equal(t, m.Text, w.Text)
	assert.Equal(t, m.Timestamp, w.Timestamp)
}
