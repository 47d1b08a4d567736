package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
)

const (
	StateEmpty   = "empty"
	StateWaiting = "waiting"
	StateActive  = "active"

	PlayerX = "X"
	PlayerO = "O"

	RoomCapacity = 2
)

// Assignment is the outcome of a successful join.
type Assignment struct {
	Mark string
	// Ready is true when the join completed the room.
	Ready bool
	// Participants are copies of the room members as the join left them. Set by repositories.
	Participants []*Participant
}

type Room struct {
	Key          string         `json:"key"`
	Participants []*Participant `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func NewRoom(key string, now time.Time) *Room {
	return &Room{
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (that *Room) State() string {
	switch len(that.Participants) {
	case 0:
		return StateEmpty
	case 1:
		return StateWaiting
	default:
		return StateActive
	}
}

func (that *Room) IsEmpty() bool {
	return len(that.Participants) == 0
}

func (that *Room) IsWaiting() bool {
	return that.State() == StateWaiting
}

func (that *Room) IsActive() bool {
	return that.State() == StateActive
}

// Join adds the connection to the room. A repeated join from a member returns its mark unchanged.
func (that *Room) Join(connID, name string, now time.Time) (Assignment, error) {
	if existing := that.Participant(connID); existing != nil {
		return Assignment{Mark: existing.Mark}, nil
	}

	if len(that.Participants) >= RoomCapacity {
		return Assignment{}, fmt.Errorf("%w: %d participants", apperror.ErrRoomFull, len(that.Participants))
	}

	mark := that.freeMark()
	that.Participants = append(that.Participants, &Participant{
		ID:       connID,
		Name:     name,
		Mark:     mark,
		JoinedAt: now,
	})
	that.UpdatedAt = now

	return Assignment{Mark: mark, Ready: that.IsActive()}, nil
}

// Leave removes the connection and reports whether it was a member.
func (that *Room) Leave(connID string, now time.Time) bool {
	for i, participant := range that.Participants {
		if participant.ID != connID {
			continue
		}

		that.Participants = append(that.Participants[:i], that.Participants[i+1:]...)
		that.UpdatedAt = now

		return true
	}

	return false
}

func (that *Room) SetName(connID, name string) error {
	participant := that.Participant(connID)
	if participant == nil {
		return fmt.Errorf("%w: %s in room %s", apperror.ErrParticipantNotFound, connID, that.Key)
	}

	participant.Name = name

	return nil
}

func (that *Room) Participant(connID string) *Participant {
	for _, participant := range that.Participants {
		if participant.ID == connID {
			return participant
		}
	}

	return nil
}

// Opponent returns the other member of the room, nil if there is none.
func (that *Room) Opponent(connID string) *Participant {
	for _, participant := range that.Participants {
		if participant.ID != connID {
			return participant
		}
	}

	return nil
}

func (that *Room) IDs() []string {
	ids := make([]string, 0, len(that.Participants))
	for _, participant := range that.Participants {
		ids = append(ids, participant.ID)
	}

	return ids
}

// IdleSince reports whether the room has been waiting without changes since before the deadline.
func (that *Room) IdleSince(deadline time.Time) bool {
	return that.IsWaiting() && that.UpdatedAt.Before(deadline)
}

// freeMark keeps the remaining member's mark when a slot is refilled.
func (that *Room) freeMark() string {
	for _, participant := range that.Participants {
		if participant.Mark == PlayerX {
			return PlayerO
		}
	}

	return PlayerX
}

func (that *Room) Clone() *Room {
	clone := *that
	clone.Participants = make([]*Participant, 0, len(that.Participants))
	for _, participant := range that.Participants {
		p := *participant
		clone.Participants = append(clone.Participants, &p)
	}

	return &clone
}
