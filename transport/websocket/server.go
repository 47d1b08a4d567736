package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-relay/internal/protocol"
)

const (
	disconnectTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second

	defaultSendBuffer = 32
)

type relay interface {
	OnJoin(ctx context.Context, connID string, req *protocol.JoinRoom) error
	OnSetName(ctx context.Context, connID string, req *protocol.SetName) error
	OnMove(ctx context.Context, connID string, req *protocol.Move) error
	OnRestart(ctx context.Context, connID string, req *protocol.Restart) error
	OnLocalMove(ctx context.Context, connID string, req *protocol.LocalMove) error
	OnLocalRestart(ctx context.Context, connID string) error
	OnDisconnect(ctx context.Context, connID string) error
}

type Options struct {
	// AllowedOrigins limits the Origin header of upgrade requests. Empty allows any origin.
	AllowedOrigins []string
	SendBuffer     int
}

type Server struct {
	logger   *slog.Logger
	hub      *Hub
	relay    relay
	upgrader websocket.Upgrader

	sendBuffer int

	handlers map[protocol.Action]func(ctx context.Context, connID string, message *protocol.Message) error
}

func New(logger *slog.Logger, hub *Hub, relay relay, options Options) *Server {
	sendBuffer := options.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}

	server := &Server{
		logger: logger.With("component", "websocket"),
		hub:    hub,
		relay:  relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(options.AllowedOrigins),
		},
		sendBuffer: sendBuffer,
		handlers:   make(map[protocol.Action]func(context.Context, string, *protocol.Message) error),
	}

	server.handlers[protocol.ActionJoinRoom] = server.handleJoinRoom
	server.handlers[protocol.ActionSetName] = server.handleSetName
	server.handlers[protocol.ActionMove] = server.handleMove
	server.handlers[protocol.ActionRestart] = server.handleRestart
	server.handlers[protocol.ActionLocalMove] = server.handleLocalMove
	server.handlers[protocol.ActionLocalRestart] = server.handleLocalRestart

	return server
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

// Handler serves /ws on an existing mux, tests use it with httptest.
func (that *Server) Handler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})
}

// upgradeToWebSocket - upgrades the connection to WebSocket and serves it until either side closes.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	client := newConnection(uuid.NewString(), conn, that.sendBuffer)
	log = log.With("connID", client.id)

	that.hub.register(client)

	log.Info("WebSocket connection established", "remote", req.RemoteAddr)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer client.close()
		return client.read(func(data []byte) {
			that.handleMessage(groupCtx, client.id, data)
		})
	})
	group.Go(func() error {
		return client.write(groupCtx)
	})

	if err = group.Wait(); err != nil {
		log.Warn("connection closed with error", "error", err)
	}

	that.hub.unregister(client)

	disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()

	if err = that.relay.OnDisconnect(disconnectCtx, client.id); err != nil {
		log.Error("failed to handle disconnect", "error", err)
	}

	log.Info("WebSocket connection closed")
}

// handleMessage - parses one client message and runs its handler. Bad input never closes the connection.
func (that *Server) handleMessage(ctx context.Context, connID string, data []byte) {
	log := that.logger.With("method", "handleMessage", "connID", connID)

	message, err := protocol.Parse(data)
	if err != nil {
		log.Warn("message dropped", "error", err)
		return
	}

	handler, ok := that.handlers[message.Action]
	if !ok {
		log.Warn("no handler for action", "action", message.Action)
		return
	}

	err = handler(ctx, connID, message)
	switch {
	case errors.Is(err, protocol.ErrMalformedMessage):
		log.Warn("message dropped", "action", message.Action, "error", err)
	case err != nil:
		log.Error("error processing message", "action", message.Action, "error", err)
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	origins := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		origins[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		_, ok := origins[origin]

		return ok
	}
}
