package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
)

func TestRoom_Join(t *testing.T) {
	now := time.Now()

	t.Run("First join gets X and leaves the room waiting", func(t *testing.T) {
		// Given: a new room
		room := NewRoom("abc", now)

		// When: the first connection joins
		assignment, err := room.Join("a", "", now)

		// Then: it is X and the room waits for an opponent
		require.NoError(t, err)
		assert.Equal(t, Assignment{Mark: PlayerX, Ready: false}, assignment)
		assert.Equal(t, StateWaiting, room.State())
	})

	t.Run("Second join gets O and activates the room", func(t *testing.T) {
		// Given: a room with one participant
		room := NewRoom("abc", now)
		_, err := room.Join("a", "", now)
		require.NoError(t, err)

		// When: a second connection joins
		assignment, err := room.Join("b", "bob", now)

		// Then: it is O and the room is ready
		require.NoError(t, err)
		assert.Equal(t, Assignment{Mark: PlayerO, Ready: true}, assignment)
		assert.Equal(t, StateActive, room.State())
		assert.Equal(t, []string{"a", "b"}, room.IDs())
		assert.Equal(t, "bob", room.Participant("b").Name)
	})

	t.Run("Third join is rejected without mutation", func(t *testing.T) {
		// Given: an active room
		room := NewRoom("abc", now)
		_, _ = room.Join("a", "", now)
		_, _ = room.Join("b", "", now)

		// When: a third connection joins
		_, err := room.Join("c", "", now)

		// Then: ErrRoomFull is returned and the room still holds two members
		require.ErrorIs(t, err, apperror.ErrRoomFull)
		assert.Equal(t, []string{"a", "b"}, room.IDs())
	})

	t.Run("Repeated join from a member is idempotent", func(t *testing.T) {
		// Given: a room with one participant
		room := NewRoom("abc", now)
		_, _ = room.Join("a", "", now)

		// When: the same connection joins again
		assignment, err := room.Join("a", "", now)

		// Then: the mark is unchanged and there is no duplicate record
		require.NoError(t, err)
		assert.Equal(t, Assignment{Mark: PlayerX}, assignment)
		assert.Len(t, room.Participants, 1)
	})

	t.Run("Refilled slot gets the mark that was freed", func(t *testing.T) {
		// Given: an active room whose X participant left
		room := NewRoom("abc", now)
		_, _ = room.Join("a", "", now)
		_, _ = room.Join("b", "", now)
		require.True(t, room.Leave("a", now))

		// When: a new connection joins
		assignment, err := room.Join("c", "", now)

		// Then: it takes X because O is still held
		require.NoError(t, err)
		assert.Equal(t, Assignment{Mark: PlayerX, Ready: true}, assignment)
	})
}

func TestRoom_Leave(t *testing.T) {
	now := time.Now()

	t.Run("Leaving an active room makes it waiting", func(t *testing.T) {
		// Given: an active room
		room := NewRoom("abc", now)
		_, _ = room.Join("a", "", now)
		_, _ = room.Join("b", "", now)

		// When: one participant leaves
		left := room.Leave("b", now)

		// Then: the other one remains with its mark
		assert.True(t, left)
		assert.Equal(t, StateWaiting, room.State())
		assert.Equal(t, PlayerX, room.Participant("a").Mark)
	})

	t.Run("Leaving a room as a stranger is a no-op", func(t *testing.T) {
		// Given: a waiting room
		room := NewRoom("abc", now)
		_, _ = room.Join("a", "", now)

		// When: a non-member leaves
		left := room.Leave("z", now)

		// Then: nothing changes
		assert.False(t, left)
		assert.Len(t, room.Participants, 1)
	})

	t.Run("Last participant leaving empties the room", func(t *testing.T) {
		// Given: a waiting room
		room := NewRoom("abc", now)
		_, _ = room.Join("a", "", now)

		// When: its only member leaves
		room.Leave("a", now)

		// Then: the room is empty
		assert.True(t, room.IsEmpty())
		assert.Equal(t, StateEmpty, room.State())
	})
}

func TestRoom_SetNameAndOpponent(t *testing.T) {
	now := time.Now()
	room := NewRoom("abc", now)
	_, _ = room.Join("a", "alice", now)
	_, _ = room.Join("b", "", now)

	require.NoError(t, room.SetName("b", "bob"))
	assert.Equal(t, "bob", room.Opponent("a").Name)
	assert.Equal(t, "alice", room.Opponent("b").Name)

	err := room.SetName("z", "zed")
	assert.ErrorIs(t, err, apperror.ErrParticipantNotFound)
}

func TestRoom_IdleSince(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	room := NewRoom("abc", created)
	_, _ = room.Join("a", "", created)

	assert.True(t, room.IdleSince(time.Now().Add(-time.Minute)))
	assert.False(t, room.IdleSince(created.Add(-time.Minute)))

	_, _ = room.Join("b", "", created)
	assert.False(t, room.IdleSince(time.Now()), "active rooms are never idle")
}
