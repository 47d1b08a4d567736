package apperror

import "errors"

var (
	ErrRoomFull            = errors.New("room is full")
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidRoomKey      = errors.New("invalid room key")
	ErrNotRoomMember       = errors.New("connection is not a member of the room")
	ErrMarkMismatch        = errors.New("mark does not belong to the connection")
)
