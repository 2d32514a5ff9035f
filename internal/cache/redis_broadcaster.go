package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes invalidation topics on a Redis channel.
// Messages published by the same instance are not delivered back to it.
type RedisBroadcaster struct {
	client   *redis.Client
	channel  string
	originID string
}

type invalidationMessage struct {
	Topic  string `json:"topic"`
	Origin string `json:"origin"`
}

// NewRedisBroadcaster connects to rawURL (redis://...) and verifies the
// connection with a ping.
func NewRedisBroadcaster(ctx context.Context, rawURL, channel string) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if channel == "" {
		channel = "mia:cache:invalidate"
	}
	return &RedisBroadcaster{
		client:   client,
		channel:  channel,
		originID: uuid.NewString(),
	}, nil
}

// Publish sends topic to every subscribed instance.
func (r *RedisBroadcaster) Publish(ctx context.Context, topic string) error {
	data, err := json.Marshal(invalidationMessage{Topic: topic, Origin: r.originID})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe streams topics published by other instances.
func (r *RedisBroadcaster) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan string, 16)
	done := make(chan struct{})
	messages := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var decoded invalidationMessage
				if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
					continue
				}
				if decoded.Origin == r.originID || decoded.Topic == "" {
					continue
				}
				select {
				case out <- decoded.Topic:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, unsubscribe, nil
}

// Close releases the Redis connection.
func (r *RedisBroadcaster) Close() error {
	return r.client.Close()
}
