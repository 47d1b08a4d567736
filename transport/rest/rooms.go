package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

type roomLister interface {
	Get(ctx context.Context, roomKey string) (*entity.Room, error)
	List(ctx context.Context) ([]*entity.Room, error)
}

type RoomHandler interface {
	List(ctx echo.Context) error
	Get(ctx echo.Context) error
}

type ParticipantResponse struct {
	Mark string `json:"mark"`
	Name string `json:"name,omitempty"`
}

// RoomResponse is the public view of a room. Connection ids stay on the server.
type RoomResponse struct {
	Key          string                `json:"key"`
	State        string                `json:"state"`
	Participants []ParticipantResponse `json:"participants"`
}

type roomHandler struct {
	logger *slog.Logger

	rooms roomLister
}

func NewRoomHandler(logger *slog.Logger, rooms roomLister) RoomHandler {
	return &roomHandler{
		logger: logger.With("component", "rest"),
		rooms:  rooms,
	}
}

func (that *roomHandler) List(ctx echo.Context) error {
	log := that.logger.With("method", "List")

	rooms, err := that.rooms.List(ctx.Request().Context())
	if err != nil {
		log.Error("failed to list rooms", "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorResponse("internal server error"))
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, toRoomResponse(room))
	}

	return ctx.JSON(http.StatusOK, response)
}

func (that *roomHandler) Get(ctx echo.Context) error {
	log := that.logger.With("method", "Get")

	key := ctx.Param("key")

	room, err := that.rooms.Get(ctx.Request().Context(), key)
	if errors.Is(err, apperror.ErrRoomNotFound) || errors.Is(err, apperror.ErrInvalidRoomKey) {
		return ctx.JSON(http.StatusNotFound, errorResponse("room not found"))
	}

	if err != nil {
		log.Error("failed to get room", "roomKey", key, "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorResponse("internal server error"))
	}

	return ctx.JSON(http.StatusOK, toRoomResponse(room))
}

func toRoomResponse(room *entity.Room) RoomResponse {
	participants := make([]ParticipantResponse, 0, len(room.Participants))
	for _, participant := range room.Participants {
		participants = append(participants, ParticipantResponse{
			Mark: participant.Mark,
			Name: participant.Name,
		})
	}

	return RoomResponse{
		Key:          room.Key,
		State:        room.State(),
		Participants: participants,
	}
}

func errorResponse(message string) map[string]string {
	return map[string]string{"error": message}
}
