package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventQueue delivers completion events to the chat-bot layer through a
// per-player Redis list. Delivery is best effort and fire-and-forget: a
// failed push is logged and never rolls back the transition that produced it.
type RedisEventQueue struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewRedisEventQueue(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisEventQueue {
	return &RedisEventQueue{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func eventKey(playerID string) string {
	return fmt.Sprintf("story-events:%s", playerID)
}

// Notify enqueues events for the player without blocking the caller.
func (q *RedisEventQueue) Notify(playerID string, events []string) {
	if len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		key := eventKey(playerID)
		args := make([]interface{}, len(events))
		for i, e := range events {
			args[i] = e
		}
		if err := q.client.RPush(ctx, key, args...).Err(); err != nil {
			q.logger.Warn("Failed to enqueue story events", "player_id", playerID, "error", err)
			return
		}
		if q.ttl > 0 {
			if err := q.client.Expire(ctx, key, q.ttl).Err(); err != nil {
				q.logger.Warn("Failed to set event queue expiry", "player_id", playerID, "error", err)
			}
		}
	}()
}

// Drain removes and returns all queued events for a player. The chat-bot
// layer calls this when rendering its next message.
func (q *RedisEventQueue) Drain(ctx context.Context, playerID string) ([]string, error) {
	key := eventKey(playerID)

	events, err := q.client.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to drain story events: %w", err)
	}
	if len(events) > 0 {
		if err := q.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("failed to clear story event queue after drain: %w", err)
		}
	}
	return events, nil
}

// Peek returns up to limit queued events without removing them. A limit of
// zero or less returns all.
func (q *RedisEventQueue) Peek(ctx context.Context, playerID string, limit int) ([]string, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}
	events, err := q.client.LRange(ctx, eventKey(playerID), 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to peek story events: %w", err)
	}
	return events, nil
}
