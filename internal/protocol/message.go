package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Action string

// Client -> server.
const (
	ActionJoinRoom     Action = "join-room"
	ActionSetName      Action = "set-name"
	ActionMove         Action = "move"
	ActionRestart      Action = "restart"
	ActionLocalMove    Action = "local-move"
	ActionLocalRestart Action = "local-restart"
)

// Server -> client.
const (
	ActionJoined         Action = "joined"
	ActionRoomFull       Action = "room-full"
	ActionSessionReady   Action = "session-ready"
	ActionOpponentName   Action = "opponent-name"
	ActionMoveApplied    Action = "move-applied"
	ActionRoundRestarted Action = "round-restarted"
	ActionPlayerLeft     Action = "player-left"
	ActionRoomExpired    Action = "room-expired"
	ActionError          Action = "error"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownAction    = errors.New("unknown action")
)

var inbound = map[Action]struct{}{
	ActionJoinRoom:     {},
	ActionSetName:      {},
	ActionMove:         {},
	ActionRestart:      {},
	ActionLocalMove:    {},
	ActionLocalRestart: {},
}

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is a server -> client payload.
type Event interface {
	Action() Action
}

// Request is a client -> server payload that checks and normalizes its own fields.
type Request interface {
	Validate() error
}

// Parse decodes an inbound envelope and rejects actions a client may not send.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if _, ok := inbound[msg.Action]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}

	return &msg, nil
}

// Unmarshal decodes the payload of msg into req and validates it.
func Unmarshal(msg *Message, req Request) error {
	payload := msg.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = []byte("{}")
	}

	if err := json.Unmarshal(payload, req); err != nil {
		return fmt.Errorf("%w: %s payload: %w", ErrMalformedMessage, msg.Action, err)
	}

	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s payload: %w", ErrMalformedMessage, msg.Action, err)
	}

	return nil
}

// Encode wraps the event into an envelope.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event.Action(), err)
	}

	data, err := json.Marshal(Message{Action: event.Action(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
