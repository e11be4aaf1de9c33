package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/liftoff-ranking/internal/config"
	"github.com/liftoff-ranking/internal/domain"
)

// RankingCache keeps the latest point totals in sorted sets, one per muscle
// group, so leaderboards can be assembled without recomputing every user.
type RankingCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRankingCache creates a new Redis ranking cache
func NewRankingCache(cfg *config.RedisConfig, logger *slog.Logger) (*RankingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RankingCache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *RankingCache) Close() error {
	return c.client.Close()
}

// Ping checks Redis connectivity
func (c *RankingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// rankingKey returns the sorted set holding a muscle group's points
func rankingKey(muscleGroup string) string {
	return fmt.Sprintf("rankings:%s", muscleGroup)
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// SetRankings writes a user's snapshots to their sorted sets in a single
// transaction
func (c *RankingCache) SetRankings(ctx context.Context, snapshots []domain.RankSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	for _, s := range snapshots {
		pipe.ZAdd(ctx, rankingKey(s.MuscleGroup), redis.Z{
			Score:  float64(s.Points),
			Member: member(s.UserID),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("setting rankings: %w", err)
	}
	return nil
}

// RemoveRankings removes a user from the given muscle groups' sorted sets
func (c *RankingCache) RemoveRankings(ctx context.Context, userID int64, muscleGroups []string) error {
	if len(muscleGroups) == 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	for _, group := range muscleGroups {
		pipe.ZRem(ctx, rankingKey(group), member(userID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("removing rankings: %w", err)
	}
	return nil
}

// GetScores returns the cached points of the given users. Users missing from
// the cache are absent from the result.
func (c *RankingCache) GetScores(ctx context.Context, muscleGroup string, userIDs []int64) (map[int64]int, error) {
	scores := make(map[int64]int, len(userIDs))
	if len(userIDs) == 0 {
		return scores, nil
	}

	key := rankingKey(muscleGroup)
	pipe := c.client.Pipeline()
	cmds := make([]*redis.FloatCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.ZScore(ctx, key, member(id))
	}

	// Exec reports redis.Nil for missing members; inspect each command instead
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("getting scores: %w", err)
	}

	for i, cmd := range cmds {
		score, err := cmd.Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("getting score result: %w", err)
		}
		scores[userIDs[i]] = int(score)
	}
	return scores, nil
}

// BatchSetScores sets multiple scores using pipelining
func (c *RankingCache) BatchSetScores(ctx context.Context, muscleGroup string, scores map[int64]int) error {
	if len(scores) == 0 {
		return nil
	}

	key := rankingKey(muscleGroup)
	pipe := c.client.Pipeline()
	for userID, points := range scores {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(points),
			Member: member(userID),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting scores: %w", err)
	}
	return nil
}
