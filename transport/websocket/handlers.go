package websocket

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-relay/internal/protocol"
)

func (that *Server) handleJoinRoom(ctx context.Context, connID string, msg *protocol.Message) error {
	var req protocol.JoinRoom
	if err := protocol.Unmarshal(msg, &req); err != nil {
		return err
	}

	return that.relay.OnJoin(ctx, connID, &req)
}

func (that *Server) handleSetName(ctx context.Context, connID string, msg *protocol.Message) error {
	var req protocol.SetName
	if err := protocol.Unmarshal(msg, &req); err != nil {
		return err
	}

	return that.relay.OnSetName(ctx, connID, &req)
}

func (that *Server) handleMove(ctx context.Context, connID string, msg *protocol.Message) error {
	var req protocol.Move
	if err := protocol.Unmarshal(msg, &req); err != nil {
		return err
	}

	return that.relay.OnMove(ctx, connID, &req)
}

func (that *Server) handleRestart(ctx context.Context, connID string, msg *protocol.Message) error {
	var req protocol.Restart
	if err := protocol.Unmarshal(msg, &req); err != nil {
		return err
	}

	return that.relay.OnRestart(ctx, connID, &req)
}

func (that *Server) handleLocalMove(ctx context.Context, connID string, msg *protocol.Message) error {
	var req protocol.LocalMove
	if err := protocol.Unmarshal(msg, &req); err != nil {
		return err
	}

	return that.relay.OnLocalMove(ctx, connID, &req)
}

func (that *Server) handleLocalRestart(ctx context.Context, connID string, msg *protocol.Message) error {
	var req protocol.LocalRestart
	if err := protocol.Unmarshal(msg, &req); err != nil {
		return err
	}

	return that.relay.OnLocalRestart(ctx, connID)
}
