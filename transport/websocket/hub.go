package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-relay/internal/protocol"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionClosed   = errors.New("connection is closed")
	ErrSendBufferFull     = errors.New("send buffer is full")
)

// Hub holds the connections served by this process and delivers encoded events to them.
type Hub struct {
	logger *slog.Logger

	connectionsMutex sync.RWMutex
	connections      map[string]*connection
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:      logger.With("component", "hub"),
		connections: make(map[string]*connection),
	}
}

// Publish encodes the event and queues it for a local connection.
func (that *Hub) Publish(_ context.Context, connID string, event protocol.Event) error {
	data, err := protocol.Encode(event)
	if err != nil {
		return err
	}

	return that.Deliver(connID, data)
}

// Deliver queues an already encoded message without blocking.
func (that *Hub) Deliver(connID string, data []byte) error {
	that.connectionsMutex.RLock()
	conn, ok := that.connections[connID]
	that.connectionsMutex.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}

	select {
	case <-conn.done:
		return fmt.Errorf("%w: %s", ErrConnectionClosed, connID)
	default:
	}

	select {
	case conn.send <- data:
		return nil
	default:
		that.logger.Warn("send buffer full, message dropped", "connID", connID)
		return fmt.Errorf("%w: %s", ErrSendBufferFull, connID)
	}
}

func (that *Hub) Has(connID string) bool {
	that.connectionsMutex.RLock()
	defer that.connectionsMutex.RUnlock()

	_, ok := that.connections[connID]

	return ok
}

func (that *Hub) Len() int {
	that.connectionsMutex.RLock()
	defer that.connectionsMutex.RUnlock()

	return len(that.connections)
}

func (that *Hub) register(conn *connection) {
	that.connectionsMutex.Lock()
	that.connections[conn.id] = conn
	that.connectionsMutex.Unlock()
}

func (that *Hub) unregister(conn *connection) {
	that.connectionsMutex.Lock()
	if current, ok := that.connections[conn.id]; ok && current == conn {
		delete(that.connections, conn.id)
	}
	that.connectionsMutex.Unlock()
}
