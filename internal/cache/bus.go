package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Topics fired by admin writes.
const (
	TopicRedFlags      = "red_flags"
	TopicSystemPrompts = "system_prompts"
)

// Invalidator is anything holding cached state that can be dropped.
type Invalidator interface {
	Invalidate()
}

// Broadcaster carries invalidation topics to other instances.
type Broadcaster interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context) (<-chan string, func(), error)
}

// Bus routes invalidation topics to registered caches, locally and, when a
// Broadcaster is configured, on every other subscribed instance.
type Bus struct {
	mu          sync.RWMutex
	targets     map[string][]Invalidator
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewBus(broadcaster Broadcaster, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		targets:     make(map[string][]Invalidator),
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Register attaches target to topic.
func (b *Bus) Register(topic string, target Invalidator) {
	if target == nil {
		return
	}
	b.mu.Lock()
	b.targets[topic] = append(b.targets[topic], target)
	b.mu.Unlock()
}

// Invalidate clears every local target of topic immediately, then publishes
// it. A publish failure is returned but local state is already cleared.
func (b *Bus) Invalidate(ctx context.Context, topic string) error {
	count := b.invalidateLocal(topic)
	b.logger.Info("cache invalidated",
		zap.String("topic", topic),
		zap.Int("targets", count),
	)
	if b.broadcaster == nil {
		return nil
	}
	if err := b.broadcaster.Publish(ctx, topic); err != nil {
		return fmt.Errorf("publish invalidation %q: %w", topic, err)
	}
	return nil
}

// Listen applies remote invalidations until ctx is done. Without a
// Broadcaster it returns immediately.
func (b *Bus) Listen(ctx context.Context) error {
	if b.broadcaster == nil {
		return nil
	}
	topics, unsubscribe, err := b.broadcaster.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe invalidations: %w", err)
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case topic, ok := <-topics:
			if !ok {
				return nil
			}
			count := b.invalidateLocal(topic)
			b.logger.Info("remote cache invalidation applied",
				zap.String("topic", topic),
				zap.Int("targets", count),
			)
		}
	}
}

func (b *Bus) invalidateLocal(topic string) int {
	b.mu.RLock()
	targets := append([]Invalidator(nil), b.targets[topic]...)
	b.mu.RUnlock()
	for _, target := range targets {
		target.Invalidate()
	}
	return len(targets)
}
