package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

const (
	roomIndexKey = "rooms"

	// optimistic transactions are retried this many times on WATCH conflicts
	maxTxRetries = 16
)

var ErrTooManyConflicts = errors.New("too many concurrent room updates")

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type dbRoom struct {
	client *redis.Client
}

// NewRoomRepository returns a registry shared by every relay instance connected to the same Redis.
func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

func roomKeyOf(roomKey string) string {
	return "room:" + roomKey
}

func membershipKeyOf(connID string) string {
	return "participant:" + connID + ":rooms"
}

func (that *dbRoom) Join(ctx context.Context, roomKey, connID, name string) (entity.Assignment, error) {
	if roomKey == "" {
		return entity.Assignment{}, apperror.ErrInvalidRoomKey
	}

	var assignment entity.Assignment

	key := roomKeyOf(roomKey)
	err := that.update(ctx, func(tx *redis.Tx) error {
		now := time.Now()

		room, err := that.load(ctx, tx, roomKey)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			room = entity.NewRoom(roomKey, now)
		} else if err != nil {
			return err
		}

		assignment, err = room.Join(connID, name, now)
		if err != nil {
			return err
		}
		assignment.Participants = room.Clone().Participants

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, roomJSON, 0)
			pipe.SAdd(ctx, roomIndexKey, roomKey)
			pipe.SAdd(ctx, membershipKeyOf(connID), roomKey)
			return nil
		})

		return err
	}, key, membershipKeyOf(connID))
	if err != nil {
		return entity.Assignment{}, fmt.Errorf("failed to join room %s: %w", roomKey, err)
	}

	return assignment, nil
}

func (that *dbRoom) Leave(ctx context.Context, connID string) (map[string][]*entity.Participant, error) {
	membershipKey := membershipKeyOf(connID)

	roomKeys, err := that.client.SMembers(ctx, membershipKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get rooms of %s: %w", connID, err)
	}

	remaining := make(map[string][]*entity.Participant, len(roomKeys))

	for _, roomKey := range roomKeys {
		participants, err := that.leaveRoom(ctx, roomKey, connID)
		if err != nil {
			return remaining, err
		}

		if len(participants) > 0 {
			remaining[roomKey] = participants
		}
	}

	if err = that.client.Del(ctx, membershipKey).Err(); err != nil {
		return remaining, fmt.Errorf("failed to delete rooms of %s: %w", connID, err)
	}

	return remaining, nil
}

// leaveRoom returns the members still in the room after connID left it.
func (that *dbRoom) leaveRoom(ctx context.Context, roomKey, connID string) ([]*entity.Participant, error) {
	var remaining []*entity.Participant

	key := roomKeyOf(roomKey)
	err := that.update(ctx, func(tx *redis.Tx) error {
		remaining = nil

		room, err := that.load(ctx, tx, roomKey)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if !room.Leave(connID, time.Now()) {
			return nil
		}

		if room.IsEmpty() {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, roomIndexKey, roomKey)
				return nil
			})
			return err
		}

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, roomJSON, 0)
			return nil
		})
		if err != nil {
			return err
		}

		remaining = room.Participants

		return nil
	}, key)
	if err != nil {
		return nil, fmt.Errorf("failed to leave room %s: %w", roomKey, err)
	}

	return remaining, nil
}

func (that *dbRoom) SetName(ctx context.Context, roomKey, connID, name string) error {
	key := roomKeyOf(roomKey)

	return that.update(ctx, func(tx *redis.Tx) error {
		room, err := that.load(ctx, tx, roomKey)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			return fmt.Errorf("%w: room %s", apperror.ErrParticipantNotFound, roomKey)
		}
		if err != nil {
			return err
		}

		if err = room.SetName(connID, name); err != nil {
			return err
		}

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, roomJSON, 0)
			return nil
		})

		return err
	}, key)
}

func (that *dbRoom) Participants(ctx context.Context, roomKey string) ([]*entity.Participant, error) {
	room, err := that.Get(ctx, roomKey)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return []*entity.Participant{}, nil
	}
	if err != nil {
		return nil, err
	}

	return room.Participants, nil
}

func (that *dbRoom) Get(ctx context.Context, roomKey string) (*entity.Room, error) {
	return that.load(ctx, that.client, roomKey)
}

func (that *dbRoom) List(ctx context.Context) ([]*entity.Room, error) {
	roomKeys, err := that.client.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make([]*entity.Room, 0, len(roomKeys))
	for _, roomKey := range roomKeys {
		room, err := that.Get(ctx, roomKey)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		rooms = append(rooms, room)
	}

	sortRooms(rooms)

	return rooms, nil
}

func (that *dbRoom) ExpireIdle(ctx context.Context, deadline time.Time) ([]*entity.Room, error) {
	rooms, err := that.List(ctx)
	if err != nil {
		return nil, err
	}

	var expired []*entity.Room

	for _, candidate := range rooms {
		if !candidate.IdleSince(deadline) {
			continue
		}

		var removed *entity.Room

		key := roomKeyOf(candidate.Key)
		err = that.update(ctx, func(tx *redis.Tx) error {
			removed = nil

			room, err := that.load(ctx, tx, candidate.Key)
			if errors.Is(err, apperror.ErrRoomNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			// re-checked under WATCH, a second player may have joined meanwhile
			if !room.IdleSince(deadline) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, roomIndexKey, room.Key)
				for _, id := range room.IDs() {
					pipe.SRem(ctx, membershipKeyOf(id), room.Key)
				}
				return nil
			})
			if err != nil {
				return err
			}

			removed = room

			return nil
		}, key)
		if err != nil {
			return expired, fmt.Errorf("failed to expire room %s: %w", candidate.Key, err)
		}

		if removed != nil {
			expired = append(expired, removed)
		}
	}

	return expired, nil
}

func (that *dbRoom) load(ctx context.Context, client getter, roomKey string) (*entity.Room, error) {
	response, err := client.Get(ctx, roomKeyOf(roomKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomKey, err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

// update runs fn in a WATCH transaction on keys and retries it when another writer got there first.
func (that *dbRoom) update(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := that.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return ErrTooManyConflicts
}
