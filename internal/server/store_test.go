package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStoreLazyAppend(t *testing.T) {
	store := NewMessageStore()

	// Appending to a never-created log creates it; this is how the
	// direct-message pseudo-rooms come into existence.
	store.Append("alice", Message{Kind: KindText, Content: "psst", Sender: "alice", ChatName: "alice"})

	history := store.History("alice")
	require.Len(t, history, 1)
	assert.Equal(t, "psst", history[0].Content)
}

func TestMessageStoreHistoryUnknownKey(t *testing.T) {
	store := NewMessageStore()

	history := store.History("empty-room")
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestMessageStoreOrdering(t *testing.T) {
	store := NewMessageStore()

	for i := 0; i < 10; i++ {
		store.Append("general", Message{Kind: KindText, Content: fmt.Sprintf("msg-%d", i), Sender: "alice", ChatName: "general"})
	}

	history := store.History("general")
	require.Len(t, history, 10)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
	}
}

func TestMessageStoreHistoryIsACopy(t *testing.T) {
	store := NewMessageStore()
	store.Append("general", Message{Kind: KindText, Content: "original", Sender: "alice", ChatName: "general"})

	history := store.History("general")
	history[0].Content = "tampered"

	assert.Equal(t, "original", store.History("general")[0].Content)
}

func TestMessageStoreLogsAreIndependent(t *testing.T) {
	store := NewMessageStore()
	store.Append("general", Message{Kind: KindText, Content: "a", Sender: "alice", ChatName: "general"})
	store.Append("random", Message{Kind: KindText, Content: "b", Sender: "bob", ChatName: "random"})

	assert.Equal(t, 1, store.Len("general"))
	assert.Equal(t, 1, store.Len("random"))
	assert.Equal(t, 0, store.Len("jokes"))
}
