package repository

import (
	"context"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

// RoomRepository is the room registry: room key -> ordered participants.
type RoomRepository interface {
	// Join adds connID to the room, creating the room on first join.
	// The assignment carries the members observed in the same atomic step.
	Join(ctx context.Context, roomKey, connID, name string) (entity.Assignment, error)
	// Leave removes connID from its rooms. It returns the remaining members of every room that still
	// has some, keyed by room key and observed in the same atomic step as the removal.
	Leave(ctx context.Context, connID string) (map[string][]*entity.Participant, error)
	SetName(ctx context.Context, roomKey, connID, name string) error
	Participants(ctx context.Context, roomKey string) ([]*entity.Participant, error)
	Get(ctx context.Context, roomKey string) (*entity.Room, error)
	List(ctx context.Context) ([]*entity.Room, error)
	// ExpireIdle deletes waiting rooms untouched since deadline and returns them as they were.
	ExpireIdle(ctx context.Context, deadline time.Time) ([]*entity.Room, error)
}
