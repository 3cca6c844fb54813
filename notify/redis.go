package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes one payload to a topic channel. Implementations are
// fire-and-forget from the caller's perspective: a publish failure never
// rolls back persisted state.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// RedisPublisher publishes JSON payloads over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps an existing Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish marshals the payload and PUBLISHes it on the topic channel.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for topic %q: %w", topic, err)
	}

	if err := p.client.Publish(ctx, topic, raw).Err(); err != nil {
		return fmt.Errorf("publish to topic %q: %w", topic, err)
	}

	return nil
}
