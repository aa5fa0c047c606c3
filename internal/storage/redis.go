package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/state"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// RedisStorage implements the Storage interface using Redis for progress
// records and the filesystem for authored chapter documents.
type RedisStorage struct {
	client     *redis.Client
	logger     *slog.Logger
	contentDir string
	entry      string
	ttl        time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. ttl of zero keeps
// records forever.
func NewRedisStorage(redisURL, contentDir, entry string, ttl time.Duration, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	if contentDir == "" {
		contentDir = "./data/chapters"
	}

	return &RedisStorage{
		client:     rdb,
		logger:     logger,
		contentDir: contentDir,
		entry:      entry,
		ttl:        ttl,
	}
}

// Client exposes the underlying Redis client so collaborators sharing the
// connection (reward applier, event queue) can be wired off of it.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func progressKey(playerID string) string {
	return "progress:" + playerID
}

func (r *RedisStorage) LoadProgress(ctx context.Context, playerID string) (*state.ProgressRecord, error) {
	data, err := r.client.Get(ctx, progressKey(playerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No record yet for this player
		}
		r.logger.Error("Failed to load progress record", "player_id", playerID, "error", err)
		return nil, fmt.Errorf("failed to load progress record: %w", err)
	}

	var rec state.ProgressRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		r.logger.Error("Failed to unmarshal progress record", "player_id", playerID, "error", err)
		return nil, fmt.Errorf("failed to unmarshal progress record: %w", err)
	}
	return &rec, nil
}

// SaveProgress writes the record behind a WATCH transaction: the stored
// version must still equal the record's version, otherwise another in-flight
// mutation won and ErrConflict is returned. The record's version is bumped
// only on a successful commit.
func (r *RedisStorage) SaveProgress(ctx context.Context, rec *state.ProgressRecord) error {
	key := progressKey(rec.PlayerID)
	expected := rec.Version

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// First save for this player.
		case err != nil:
			return fmt.Errorf("failed to read stored record: %w", err)
		default:
			var current state.ProgressRecord
			if err := json.Unmarshal([]byte(stored), &current); err != nil {
				return fmt.Errorf("failed to unmarshal stored record: %w", err)
			}
			if current.Version != expected {
				return ErrConflict
			}
		}

		next := rec.Clone()
		next.Version = expected + 1
		next.UpdatedAt = time.Now()

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal progress record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		rec.Version = next.Version
		rec.UpdatedAt = next.UpdatedAt
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if errors.Is(err, ErrConflict) {
		r.logger.Warn("Progress record save conflict", "player_id", rec.PlayerID, "version", expected)
		return ErrConflict
	}
	if err != nil {
		r.logger.Error("Failed to save progress record", "player_id", rec.PlayerID, "error", err)
		return fmt.Errorf("failed to save progress record: %w", err)
	}
	return nil
}

// LoadContent reads the chapter documents from the content directory.
func (r *RedisStorage) LoadContent(ctx context.Context) (*story.ContentModel, error) {
	model, err := LoadContentDir(r.contentDir, r.entry)
	if err != nil {
		r.logger.Error("Failed to load content", "dir", r.contentDir, "error", err)
		return nil, err
	}
	r.logger.Info("Content loaded", "dir", r.contentDir, "chapters", model.Len(), "entry", model.EntryID())
	return model, nil
}
