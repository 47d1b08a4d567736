package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

type repoFactory func(t *testing.T) (context.Context, RoomRepository)

// testRoomRepository checks the registry behaviour every RoomRepository implementation must share.
func testRoomRepository(t *testing.T, newRepo repoFactory) {
	t.Run("First join creates a waiting room with X", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// When: one connection joins an unknown room
		assignment, err := repo.Join(ctx, "abc", "a", "")

		// Then: the room exists, waits, and its only member holds X
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, assignment.Mark)
		assert.False(t, assignment.Ready)
		assert.Equal(t, []string{"a"}, participantIDs(assignment.Participants))

		room, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, entity.StateWaiting, room.State())
		require.Len(t, room.Participants, 1)
		assert.Equal(t, entity.PlayerX, room.Participants[0].Mark)
	})

	t.Run("Second join activates the room and third join is rejected", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: two connections joined in order
		_, err := repo.Join(ctx, "abc", "a", "alice")
		require.NoError(t, err)
		assignment, err := repo.Join(ctx, "abc", "b", "bob")
		require.NoError(t, err)

		// Then: the second one holds O and the room is ready
		assert.Equal(t, entity.PlayerO, assignment.Mark)
		assert.True(t, assignment.Ready)
		assert.Equal(t, []string{"a", "b"}, participantIDs(assignment.Participants))

		// When: a third connection joins
		_, err = repo.Join(ctx, "abc", "c", "")

		// Then: it is rejected and membership is unchanged
		require.ErrorIs(t, err, apperror.ErrRoomFull)

		participants, err := repo.Participants(ctx, "abc")
		require.NoError(t, err)
		require.Len(t, participants, 2)
		assert.Equal(t, "a", participants[0].ID)
		assert.Equal(t, "b", participants[1].ID)

		// And: the rejected connection owns no room
		affected, err := repo.Leave(ctx, "c")
		require.NoError(t, err)
		assert.Empty(t, affected)
	})

	t.Run("Join is idempotent for the same connection", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, err := repo.Join(ctx, "abc", "a", "")
		require.NoError(t, err)

		assignment, err := repo.Join(ctx, "abc", "a", "")
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, assignment.Mark)
		assert.False(t, assignment.Ready)

		participants, err := repo.Participants(ctx, "abc")
		require.NoError(t, err)
		assert.Len(t, participants, 1)
	})

	t.Run("Empty room key is rejected", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, err := repo.Join(ctx, "", "a", "")

		assert.ErrorIs(t, err, apperror.ErrInvalidRoomKey)
	})

	t.Run("Any non-empty key is accepted as is", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, err := repo.Join(ctx, " weird:key/ü ", "a", "")
		require.NoError(t, err)

		_, err = repo.Get(ctx, " weird:key/ü ")
		assert.NoError(t, err)
	})

	t.Run("Last participant leaving deletes the room", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: a waiting room
		_, err := repo.Join(ctx, "abc", "a", "")
		require.NoError(t, err)

		// When: its only member leaves
		affected, err := repo.Leave(ctx, "a")

		// Then: no room needs a notification and the room is gone
		require.NoError(t, err)
		assert.Empty(t, affected)

		_, err = repo.Get(ctx, "abc")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)

		// And: a new join starts over with X
		assignment, err := repo.Join(ctx, "abc", "z", "")
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, assignment.Mark)
	})

	t.Run("Leaving an active room keeps the other member", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, _ = repo.Join(ctx, "abc", "a", "")
		_, _ = repo.Join(ctx, "abc", "b", "")

		remaining, err := repo.Leave(ctx, "b")
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, []string{"a"}, participantIDs(remaining["abc"]))

		room, err := repo.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, entity.StateWaiting, room.State())
		assert.Equal(t, []string{"a"}, room.IDs())
	})

	t.Run("Leave without membership is a no-op", func(t *testing.T) {
		ctx, repo := newRepo(t)

		affected, err := repo.Leave(ctx, "ghost")

		require.NoError(t, err)
		assert.Empty(t, affected)
	})

	t.Run("SetName updates members and reports strangers", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, _ = repo.Join(ctx, "abc", "a", "")

		require.NoError(t, repo.SetName(ctx, "abc", "a", "alice"))

		participants, err := repo.Participants(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "alice", participants[0].Name)

		err = repo.SetName(ctx, "abc", "b", "bob")
		require.ErrorIs(t, err, apperror.ErrParticipantNotFound)

		err = repo.SetName(ctx, "nope", "a", "alice")
		assert.ErrorIs(t, err, apperror.ErrParticipantNotFound)
	})

	t.Run("Participants of an unknown room is empty", func(t *testing.T) {
		ctx, repo := newRepo(t)

		participants, err := repo.Participants(ctx, "nope")

		require.NoError(t, err)
		assert.Empty(t, participants)
	})

	t.Run("List returns rooms sorted by key", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, _ = repo.Join(ctx, "b", "1", "")
		_, _ = repo.Join(ctx, "a", "2", "")
		_, _ = repo.Join(ctx, "a", "3", "")

		rooms, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		assert.Equal(t, "a", rooms[0].Key)
		assert.Equal(t, entity.StateActive, rooms[0].State())
		assert.Equal(t, "b", rooms[1].Key)
	})

	t.Run("ExpireIdle removes only waiting rooms", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, _ = repo.Join(ctx, "lonely", "a", "")
		_, _ = repo.Join(ctx, "busy", "b", "")
		_, _ = repo.Join(ctx, "busy", "c", "")

		// When: everything older than a future deadline is considered idle
		expired, err := repo.ExpireIdle(ctx, time.Now().Add(time.Minute))

		// Then: only the waiting room is removed, with its member list intact
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, "lonely", expired[0].Key)
		assert.Equal(t, []string{"a"}, expired[0].IDs())

		_, err = repo.Get(ctx, "lonely")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)

		_, err = repo.Get(ctx, "busy")
		require.NoError(t, err)

		// And: the evicted connection no longer belongs to the room
		affected, err := repo.Leave(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, affected)
	})

	t.Run("ExpireIdle keeps rooms touched after the deadline", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, _ = repo.Join(ctx, "fresh", "a", "")

		expired, err := repo.ExpireIdle(ctx, time.Now().Add(-time.Minute))

		require.NoError(t, err)
		assert.Empty(t, expired)
	})

	t.Run("Leave reports remaining members of every room", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: one connection sits in two active rooms and one waiting room
		_, _ = repo.Join(ctx, "one", "a", "")
		_, _ = repo.Join(ctx, "one", "b", "bob")
		_, _ = repo.Join(ctx, "two", "c", "")
		_, _ = repo.Join(ctx, "two", "a", "")
		_, _ = repo.Join(ctx, "solo", "a", "")

		// When
		remaining, err := repo.Leave(ctx, "a")

		// Then: emptied rooms are gone and the others list who is left
		require.NoError(t, err)
		require.Len(t, remaining, 2)
		assert.Equal(t, []string{"b"}, participantIDs(remaining["one"]))
		assert.Equal(t, "bob", remaining["one"][0].Name)
		assert.Equal(t, []string{"c"}, participantIDs(remaining["two"]))

		_, err = repo.Get(ctx, "solo")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Concurrent joins of one connection track every room", func(t *testing.T) {
		ctx, repo := newRepo(t)

		const rooms = 8

		var wg sync.WaitGroup
		for i := range rooms {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, err := repo.Join(ctx, fmt.Sprintf("room-%d", i), "a", "")
				assert.NoError(t, err)
			}()
		}

		wg.Wait()

		// When: the connection leaves
		remaining, err := repo.Leave(ctx, "a")

		// Then: every room it joined is released
		require.NoError(t, err)
		assert.Empty(t, remaining)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Concurrent joins never overfill a room", func(t *testing.T) {
		ctx, repo := newRepo(t)

		const joiners = 8

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			joined int
			full   int
		)

		for i := range joiners {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, err := repo.Join(ctx, "race", fmt.Sprintf("conn-%d", i), "")

				mu.Lock()
				defer mu.Unlock()

				switch {
				case err == nil:
					joined++
				case assert.ErrorIs(t, err, apperror.ErrRoomFull):
					full++
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, entity.RoomCapacity, joined)
		assert.Equal(t, joiners-entity.RoomCapacity, full)

		participants, err := repo.Participants(ctx, "race")
		require.NoError(t, err)
		require.Len(t, participants, 2)
		assert.NotEqual(t, participants[0].Mark, participants[1].Mark)
	})
}

func participantIDs(participants []*entity.Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, participant := range participants {
		ids = append(ids, participant.ID)
	}

	return ids
}
