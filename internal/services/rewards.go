package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// Economy is the external economy/shop subsystem boundary: it actually
// credits exp, coins and items to the player.
type Economy interface {
	Grant(ctx context.Context, playerID string, rewards story.Rewards) error
}

// LogEconomy is a stand-in Economy that only logs grants. Used until the
// real economy service is wired in, and in development.
type LogEconomy struct {
	logger *slog.Logger
}

func NewLogEconomy(logger *slog.Logger) *LogEconomy {
	return &LogEconomy{logger: logger}
}

func (e *LogEconomy) Grant(ctx context.Context, playerID string, rewards story.Rewards) error {
	e.logger.Info("Rewards granted",
		"player_id", playerID,
		"exp", rewards.Exp,
		"coins", rewards.Coins,
		"items", rewards.Items)
	return nil
}

// RedisRewardApplier applies chapter-completion rewards exactly once per
// (player, chapter) pair: a SETNX claim in Redis is the idempotency key, so
// at-least-once delivery from a retrying caller never double-grants.
type RedisRewardApplier struct {
	client  *redis.Client
	economy Economy
	logger  *slog.Logger
}

func NewRedisRewardApplier(client *redis.Client, economy Economy, logger *slog.Logger) *RedisRewardApplier {
	return &RedisRewardApplier{
		client:  client,
		economy: economy,
		logger:  logger,
	}
}

func rewardKey(playerID, chapterID string) string {
	return fmt.Sprintf("reward:%s:%s", playerID, chapterID)
}

func (r *RedisRewardApplier) Apply(ctx context.Context, playerID, chapterID string, rewards story.Rewards) error {
	key := rewardKey(playerID, chapterID)
	claimed, err := r.client.SetNX(ctx, key, 1, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim reward %s: %w", key, err)
	}
	if !claimed {
		r.logger.Debug("Reward already applied", "player_id", playerID, "chapter_id", chapterID)
		return nil
	}

	if err := r.economy.Grant(ctx, playerID, rewards); err != nil {
		// Release the claim so a retry can grant the reward.
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			r.logger.Error("Failed to release reward claim after grant failure",
				"key", key, "error", delErr)
		}
		return fmt.Errorf("failed to grant rewards for chapter %q: %w", chapterID, err)
	}

	r.logger.Debug("Reward applied", "player_id", playerID, "chapter_id", chapterID)
	return nil
}
