package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

type memoryRoom struct {
	mu sync.Mutex

	rooms map[string]*entity.Room
	// connID -> keys of the rooms it belongs to
	memberships map[string]map[string]struct{}
}

func NewMemoryRoomRepository() RoomRepository {
	return &memoryRoom{
		rooms:       make(map[string]*entity.Room),
		memberships: make(map[string]map[string]struct{}),
	}
}

func (that *memoryRoom) Join(_ context.Context, roomKey, connID, name string) (entity.Assignment, error) {
	if roomKey == "" {
		return entity.Assignment{}, apperror.ErrInvalidRoomKey
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	now := time.Now()

	room, ok := that.rooms[roomKey]
	if !ok {
		room = entity.NewRoom(roomKey, now)
	}

	assignment, err := room.Join(connID, name, now)
	if err != nil {
		return entity.Assignment{}, fmt.Errorf("failed to join room %s: %w", roomKey, err)
	}

	that.rooms[roomKey] = room

	keys, ok := that.memberships[connID]
	if !ok {
		keys = make(map[string]struct{})
		that.memberships[connID] = keys
	}
	keys[roomKey] = struct{}{}

	assignment.Participants = room.Clone().Participants

	return assignment, nil
}

func (that *memoryRoom) Leave(_ context.Context, connID string) (map[string][]*entity.Participant, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := time.Now()
	remaining := make(map[string][]*entity.Participant, 1)

	for roomKey := range that.memberships[connID] {
		room, ok := that.rooms[roomKey]
		if !ok || !room.Leave(connID, now) {
			continue
		}

		if room.IsEmpty() {
			delete(that.rooms, roomKey)
			continue
		}

		remaining[roomKey] = room.Clone().Participants
	}

	delete(that.memberships, connID)

	return remaining, nil
}

func (that *memoryRoom) SetName(_ context.Context, roomKey, connID, name string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomKey]
	if !ok {
		return fmt.Errorf("%w: room %s", apperror.ErrParticipantNotFound, roomKey)
	}

	return room.SetName(connID, name)
}

func (that *memoryRoom) Participants(_ context.Context, roomKey string) ([]*entity.Participant, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomKey]
	if !ok {
		return []*entity.Participant{}, nil
	}

	return room.Clone().Participants, nil
}

func (that *memoryRoom) Get(_ context.Context, roomKey string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomKey)
	}

	return room.Clone(), nil
}

func (that *memoryRoom) List(_ context.Context) ([]*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	rooms := make([]*entity.Room, 0, len(that.rooms))
	for _, room := range that.rooms {
		rooms = append(rooms, room.Clone())
	}

	sortRooms(rooms)

	return rooms, nil
}

func (that *memoryRoom) ExpireIdle(_ context.Context, deadline time.Time) ([]*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	var expired []*entity.Room

	for roomKey, room := range that.rooms {
		if !room.IdleSince(deadline) {
			continue
		}

		for _, id := range room.IDs() {
			if keys, ok := that.memberships[id]; ok {
				delete(keys, roomKey)
				if len(keys) == 0 {
					delete(that.memberships, id)
				}
			}
		}

		delete(that.rooms, roomKey)
		expired = append(expired, room)
	}

	sortRooms(expired)

	return expired, nil
}

func sortRooms(rooms []*entity.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].Key < rooms[j].Key
	})
}
