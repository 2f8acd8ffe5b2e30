package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"socialnet/internal/model"
)

const channelPrefix = "live:user:"

// RedisRelay publishes live events through Redis pub/sub so that every API
// instance delivers to the connections it holds.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	log    zerolog.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{client: client, hub: hub, log: log}
}

func Channel(userID string) string {
	return channelPrefix + userID
}

func (r *RedisRelay) Publish(ctx context.Context, recipientID string, event model.LiveEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	if err := r.client.Publish(ctx, Channel(recipientID), payload).Err(); err != nil {
		return fmt.Errorf("publish live event: %w", err)
	}
	return nil
}

// Run forwards relayed events to the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe live channels: %w", err)
	}
	r.log.Info().Str("pattern", channelPrefix+"*").Msg("live relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID := strings.TrimPrefix(msg.Channel, channelPrefix)
			r.hub.Deliver(userID, []byte(msg.Payload))
		}
	}
}
