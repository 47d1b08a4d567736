package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/protocol"
)

type roomRepo interface {
	Join(ctx context.Context, roomKey, connID, name string) (entity.Assignment, error)
	Leave(ctx context.Context, connID string) (map[string][]*entity.Participant, error)
	SetName(ctx context.Context, roomKey, connID, name string) error
	Participants(ctx context.Context, roomKey string) ([]*entity.Participant, error)
	ExpireIdle(ctx context.Context, deadline time.Time) ([]*entity.Room, error)
}

// Publisher delivers one event to one connection, wherever it is held.
type Publisher interface {
	Publish(ctx context.Context, connID string, event protocol.Event) error
}

type RelayOptions struct {
	// EnforceMembership rejects moves and restarts from connections outside the room and moves
	// carrying a mark other than the sender's. Off by default: clients are trusted.
	EnforceMembership bool
}

// Relay coordinates rooms and fans events out to their members. It keeps no board state.
type Relay struct {
	logger    *slog.Logger
	rooms     roomRepo
	publisher Publisher
	options   RelayOptions

	// membershipMutex orders membership changes together with their notifications.
	membershipMutex sync.Mutex

	now func() time.Time
}

func NewRelay(logger *slog.Logger, rooms roomRepo, publisher Publisher, options RelayOptions) *Relay {
	return &Relay{
		logger:    logger.With("component", "relay"),
		rooms:     rooms,
		publisher: publisher,
		options:   options,
		now:       time.Now,
	}
}

func (that *Relay) OnJoin(ctx context.Context, connID string, req *protocol.JoinRoom) error {
	log := that.logger.With("method", "OnJoin", "roomKey", req.RoomKey, "connID", connID)

	that.membershipMutex.Lock()
	defer that.membershipMutex.Unlock()

	assignment, err := that.rooms.Join(ctx, req.RoomKey, connID, req.DisplayName)
	if errors.Is(err, apperror.ErrRoomFull) {
		log.Info("room is full, join rejected")
		that.send(ctx, log, connID, protocol.RoomFull{})

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to join room %s: %w", req.RoomKey, err)
	}

	that.send(ctx, log, connID, protocol.Joined{RoomKey: req.RoomKey, Role: assignment.Mark})

	log.Info("player joined room", "mark", assignment.Mark)

	if !assignment.Ready {
		return nil
	}

	participants := assignment.Participants
	for _, participant := range participants {
		event := protocol.SessionReady{RoomKey: req.RoomKey}
		if opponent := opponentOf(participants, participant.ID); opponent != nil {
			event.OpponentName = opponent.Name
		}

		that.send(ctx, log, participant.ID, event)
	}

	log.Info("session ready")

	return nil
}

func (that *Relay) OnSetName(ctx context.Context, connID string, req *protocol.SetName) error {
	log := that.logger.With("method", "OnSetName", "roomKey", req.RoomKey, "connID", connID)

	err := that.rooms.SetName(ctx, req.RoomKey, connID, req.Name)
	if errors.Is(err, apperror.ErrParticipantNotFound) {
		log.Debug("name for unknown participant ignored")
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to set name: %w", err)
	}

	participants, err := that.rooms.Participants(ctx, req.RoomKey)
	if err != nil {
		return fmt.Errorf("failed to get participants of %s: %w", req.RoomKey, err)
	}

	for _, participant := range participants {
		if participant.ID == connID {
			continue
		}

		that.send(ctx, log, participant.ID, protocol.OpponentName{Name: req.Name})
	}

	return nil
}

// OnMove echoes the move to every member, the sender included. Legality is up to the clients.
func (that *Relay) OnMove(ctx context.Context, connID string, req *protocol.Move) error {
	log := that.logger.With("method", "OnMove", "roomKey", req.RoomKey, "connID", connID)

	participants, err := that.rooms.Participants(ctx, req.RoomKey)
	if err != nil {
		return fmt.Errorf("failed to get participants of %s: %w", req.RoomKey, err)
	}

	if len(participants) == 0 {
		log.Debug("move for unknown room dropped")
		return nil
	}

	if that.options.EnforceMembership {
		if err = authorize(participants, connID, req.Mark); err != nil {
			log.Warn("move rejected", "error", err)
			that.send(ctx, log, connID, protocol.Error{Reason: err.Error()})

			return nil
		}
	}

	that.broadcast(ctx, log, participants, protocol.MoveApplied{CellIndex: req.Cell(), Mark: req.Mark})

	return nil
}

func (that *Relay) OnRestart(ctx context.Context, connID string, req *protocol.Restart) error {
	log := that.logger.With("method", "OnRestart", "roomKey", req.RoomKey, "connID", connID)

	participants, err := that.rooms.Participants(ctx, req.RoomKey)
	if err != nil {
		return fmt.Errorf("failed to get participants of %s: %w", req.RoomKey, err)
	}

	if len(participants) == 0 {
		log.Debug("restart for unknown room dropped")
		return nil
	}

	if that.options.EnforceMembership {
		if err = authorize(participants, connID, ""); err != nil {
			log.Warn("restart rejected", "error", err)
			that.send(ctx, log, connID, protocol.Error{Reason: err.Error()})

			return nil
		}
	}

	that.broadcast(ctx, log, participants, protocol.RoundRestarted{RoomKey: req.RoomKey})

	return nil
}

// OnLocalMove serves single-player clients: the move goes back to the sender only.
func (that *Relay) OnLocalMove(ctx context.Context, connID string, req *protocol.LocalMove) error {
	log := that.logger.With("method", "OnLocalMove", "connID", connID)

	that.send(ctx, log, connID, protocol.MoveApplied{CellIndex: req.Cell(), Mark: req.Mark})

	return nil
}

func (that *Relay) OnLocalRestart(ctx context.Context, connID string) error {
	log := that.logger.With("method", "OnLocalRestart", "connID", connID)

	that.send(ctx, log, connID, protocol.RoundRestarted{})

	return nil
}

func (that *Relay) OnDisconnect(ctx context.Context, connID string) error {
	log := that.logger.With("method", "OnDisconnect", "connID", connID)

	that.membershipMutex.Lock()
	defer that.membershipMutex.Unlock()

	remaining, err := that.rooms.Leave(ctx, connID)
	if err != nil {
		return fmt.Errorf("failed to leave rooms: %w", err)
	}

	roomKeys := make([]string, 0, len(remaining))
	for roomKey := range remaining {
		roomKeys = append(roomKeys, roomKey)
	}
	sort.Strings(roomKeys)

	for _, roomKey := range roomKeys {
		that.broadcast(ctx, log.With("roomKey", roomKey), remaining[roomKey], protocol.PlayerLeft{})
	}

	log.Info("player disconnected", "notifiedRooms", len(roomKeys))

	return nil
}

// ExpireIdle empties waiting rooms untouched for longer than idleTimeout and tells their members.
func (that *Relay) ExpireIdle(ctx context.Context, idleTimeout time.Duration) (int, error) {
	log := that.logger.With("method", "ExpireIdle")

	that.membershipMutex.Lock()
	defer that.membershipMutex.Unlock()

	expired, err := that.rooms.ExpireIdle(ctx, that.now().Add(-idleTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to expire idle rooms: %w", err)
	}

	for _, room := range expired {
		that.broadcast(ctx, log.With("roomKey", room.Key), room.Participants, protocol.RoomExpired{RoomKey: room.Key})
	}

	if len(expired) > 0 {
		log.Info("idle rooms expired", "count", len(expired))
	}

	return len(expired), nil
}

// RunJanitor calls ExpireIdle every interval until ctx is done.
func (that *Relay) RunJanitor(ctx context.Context, idleTimeout, interval time.Duration) error {
	log := that.logger.With("method", "RunJanitor")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := that.ExpireIdle(ctx, idleTimeout); err != nil {
				log.Error("failed to expire idle rooms", "error", err)
			}
		}
	}
}

func (that *Relay) broadcast(ctx context.Context, log *slog.Logger, participants []*entity.Participant, event protocol.Event) {
	for _, participant := range participants {
		that.send(ctx, log, participant.ID, event)
	}
}

// send logs delivery failures instead of returning them.
func (that *Relay) send(ctx context.Context, log *slog.Logger, connID string, event protocol.Event) {
	if err := that.publisher.Publish(ctx, connID, event); err != nil {
		log.Error("failed to publish event", "action", event.Action(), "to", connID, "error", err)
	}
}

func authorize(participants []*entity.Participant, connID, mark string) error {
	for _, participant := range participants {
		if participant.ID != connID {
			continue
		}

		if mark != "" && participant.Mark != mark {
			return fmt.Errorf("%w: %s plays %s", apperror.ErrMarkMismatch, mark, participant.Mark)
		}

		return nil
	}

	return apperror.ErrNotRoomMember
}

func opponentOf(participants []*entity.Participant, connID string) *entity.Participant {
	for _, participant := range participants {
		if participant.ID != connID {
			return participant
		}
	}

	return nil
}
