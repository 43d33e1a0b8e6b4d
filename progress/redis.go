package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel progress is published on.
const DefaultChannel = "document-progress"

// ErrNoSubscribers is returned when a broadcast reached nobody.
var ErrNoSubscribers = errors.New("no subscribers")

// RedisBroadcaster publishes messages on a Redis pub/sub channel.
type RedisBroadcaster struct {
	client  redis.UniversalClient
	channel string
	owned   bool
}

// NewRedisBroadcaster connects to addr. The client is closed by Close.
func NewRedisBroadcaster(addr, password string, db int, channel string) *RedisBroadcaster {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	b := NewRedisBroadcasterFromClient(client, channel)
	b.owned = true
	return b
}

// NewRedisBroadcasterFromClient wraps an existing client, which the caller
// keeps ownership of.
func NewRedisBroadcasterFromClient(client redis.UniversalClient, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroadcaster{client: client, channel: channel}
}

// Broadcast publishes msg as JSON. Publishing to a channel without
// subscribers fails with ErrNoSubscribers so the direct path can run.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis broadcast: marshal: %w", err)
	}
	n, err := b.client.Publish(ctx, b.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("redis broadcast: %w", err)
	}
	if n == 0 {
		return ErrNoSubscribers
	}
	return nil
}

// Close closes the client when the broadcaster created it.
func (b *RedisBroadcaster) Close() error {
	if b.owned {
		return b.client.Close()
	}
	return nil
}
