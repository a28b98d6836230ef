package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRegistrySeededRooms(t *testing.T) {
	reg := NewRoomRegistry("general", "random")

	assert.True(t, reg.Exists("general"))
	assert.True(t, reg.Exists("random"))
	assert.False(t, reg.Exists("trivia"))
	assert.Len(t, reg.Rooms(), 2)
}

func TestRoomRegistryCreate(t *testing.T) {
	reg := NewRoomRegistry()

	require.NoError(t, reg.Create("trivia", "conn-1"))
	assert.True(t, reg.Exists("trivia"))

	// The creator is the first member.
	assert.Equal(t, []string{"conn-1"}, reg.Members("trivia"))
}

func TestRoomRegistryCreateDuplicate(t *testing.T) {
	reg := NewRoomRegistry("general")
	require.NoError(t, reg.Join("conn-1", "general"))

	err := reg.Create("general", "conn-2")
	assert.ErrorIs(t, err, ErrRoomAlreadyExists)

	// The existing room's membership is unaffected.
	assert.Equal(t, []string{"conn-1"}, reg.Members("general"))
}

func TestRoomRegistryJoinUnknownRoom(t *testing.T) {
	reg := NewRoomRegistry()

	err := reg.Join("conn-1", "nowhere")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomRegistryJoinIdempotent(t *testing.T) {
	reg := NewRoomRegistry("general")

	require.NoError(t, reg.Join("conn-1", "general"))
	require.NoError(t, reg.Join("conn-1", "general"))

	assert.Equal(t, 1, reg.MemberCount("general"))
}

func TestRoomRegistryDropConnection(t *testing.T) {
	reg := NewRoomRegistry("general", "random")
	require.NoError(t, reg.Join("conn-1", "general"))
	require.NoError(t, reg.Join("conn-1", "random"))
	require.NoError(t, reg.Join("conn-2", "general"))

	reg.DropConnection("conn-1")

	assert.Equal(t, []string{"conn-2"}, reg.Members("general"))
	assert.Empty(t, reg.Members("random"))
}

func TestRoomRegistryEnsureIsIdempotent(t *testing.T) {
	reg := NewRoomRegistry("general")
	require.NoError(t, reg.Join("conn-1", "general"))

	// Re-seeding must not wipe membership.
	reg.Ensure("general")
	assert.Equal(t, 1, reg.MemberCount("general"))
}
