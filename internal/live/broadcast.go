package live

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

const snapshotKey = "live:match:current"

// RedisBroadcaster publishes live updates on a pub/sub channel and keeps the latest
// one under a key so late websocket clients get the current state
type RedisBroadcaster struct {
	Client  *redis.Client
	Channel string
	TTL     time.Duration
}

func NewRedisBroadcaster(c *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{Client: c, Channel: channel, TTL: 6 * time.Hour}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, u events.LiveMatchUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	pipe := b.Client.TxPipeline()
	pipe.Set(ctx, snapshotKey, payload, b.TTL)
	pipe.Publish(ctx, b.Channel, payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Latest returns the cached snapshot, nil when none is cached
func (b *RedisBroadcaster) Latest(ctx context.Context) (*events.LiveMatchUpdate, error) {
	raw, err := b.Client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u events.LiveMatchUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
