package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-relay/internal/protocol"
)

const channelPrefix = "conn:"

// local is the set of sockets held by this process.
type local interface {
	Deliver(connID string, data []byte) error
	Has(connID string) bool
}

// Broker delivers events to connections held by any relay instance sharing the same Redis.
type Broker struct {
	logger *slog.Logger
	client *goredis.Client
	local  local
}

func NewBroker(logger *slog.Logger, client *goredis.Client, local local) *Broker {
	return &Broker{
		logger: logger.With("component", "broker"),
		client: client,
		local:  local,
	}
}

func channelOf(connID string) string {
	return channelPrefix + connID
}

// Publish - delivers the event directly when the connection is local, otherwise publishes it on the connection channel.
func (that *Broker) Publish(ctx context.Context, connID string, event protocol.Event) error {
	data, err := protocol.Encode(event)
	if err != nil {
		return err
	}

	if that.local.Has(connID) {
		return that.local.Deliver(connID, data)
	}

	if err = that.client.Publish(ctx, channelOf(connID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Run - forwards messages published by other instances to local connections until ctx is done.
func (that *Broker) Run(ctx context.Context) error {
	log := that.logger.With("method", "Run")

	pubsub := that.client.PSubscribe(ctx, channelPrefix+"*")
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Error("failed to close subscription", "error", err)
		}
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	log.Info("subscribed to connection channels")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			connID := strings.TrimPrefix(msg.Channel, channelPrefix)
			if !that.local.Has(connID) {
				continue
			}

			if err := that.local.Deliver(connID, []byte(msg.Payload)); err != nil {
				log.Warn("failed to deliver message", "connID", connID, "error", err)
			}
		}
	}
}
