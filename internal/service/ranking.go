package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liftoff-ranking/internal/config"
	"github.com/liftoff-ranking/internal/domain"
	"github.com/liftoff-ranking/internal/ranking"
)

// WorkoutStore is the read side of the workout store and friend graph
type WorkoutStore interface {
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	ListWorkouts(ctx context.Context, userID int64) ([]domain.WorkoutRecord, error)
	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// RankingStore persists ranking snapshots. It is the source of truth the
// cache is rebuilt from.
type RankingStore interface {
	GetRanking(ctx context.Context, userID int64, muscleGroup string) (*domain.RankSnapshot, error)
	ListRankings(ctx context.Context, muscleGroup string) ([]domain.RankSnapshot, error)
	ListAllRankings(ctx context.Context) ([]domain.RankSnapshot, error)
	// ReplaceRankings stores a user's snapshots and deletes the user's other
	// muscle groups, returning the groups it deleted
	ReplaceRankings(ctx context.Context, userID int64, snapshots []domain.RankSnapshot) ([]string, error)
	RecordRankChange(ctx context.Context, event domain.RankChangeEvent) error
}

// RankCache holds the latest points per muscle group
type RankCache interface {
	SetRankings(ctx context.Context, snapshots []domain.RankSnapshot) error
	RemoveRankings(ctx context.Context, userID int64, muscleGroups []string) error
	GetScores(ctx context.Context, muscleGroup string, userIDs []int64) (map[int64]int, error)
	BatchSetScores(ctx context.Context, muscleGroup string, scores map[int64]int) error
}

// Notifier pushes rank updates to connected clients
type Notifier interface {
	BroadcastRankUpdate(update domain.UserRanking, change *domain.RankChangeEvent)
}

// RecalcSummary reports the outcome of a bulk recalculation
type RecalcSummary struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}

// RankingService computes rankings from workout history and serves leaderboards
type RankingService struct {
	store    WorkoutStore
	rankings RankingStore
	cache    RankCache
	notifier Notifier
	config   *config.Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewRankingService creates a new ranking service. notifier may be nil.
func NewRankingService(
	store WorkoutStore,
	rankings RankingStore,
	cache RankCache,
	notifier Notifier,
	cfg *config.Config,
	logger *slog.Logger,
) *RankingService {
	return &RankingService{
		store:    store,
		rankings: rankings,
		cache:    cache,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Tiers returns the tier table for presentation layers
func (s *RankingService) Tiers() []domain.TierInfo {
	return domain.Tiers()
}

// GetUserRanking computes a user's ranking from their current history
// without persisting it
func (s *RankingService) GetUserRanking(ctx context.Context, userID int64) (*domain.UserRanking, error) {
	user, workouts, err := s.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := ranking.Evaluate(userID, workouts, s.now())
	result.Username = user.Username
	return &result, nil
}

// RecalculateUser recomputes a user's ranking and stores it. The snapshot
// write is authoritative; cache, audit and broadcast failures only log.
func (s *RankingService) RecalculateUser(ctx context.Context, userID int64) (*domain.UserRanking, error) {
	user, workouts, err := s.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := ranking.Evaluate(userID, workouts, now)
	result.Username = user.Username

	previous, err := s.rankings.GetRanking(ctx, userID, domain.MuscleGroupOverall)
	if err != nil && !errors.Is(err, domain.ErrRankingNotFound) {
		s.logger.Warn("failed to load previous ranking", "user_id", userID, "error", err)
	}

	snapshots := snapshotsOf(result, now)
	removed, err := s.rankings.ReplaceRankings(ctx, userID, snapshots)
	if err != nil {
		return nil, fmt.Errorf("storing rankings: %w", err)
	}

	if err := s.cache.SetRankings(ctx, snapshots); err != nil {
		s.logger.Warn("failed to cache rankings", "user_id", userID, "error", err)
	}
	if len(removed) > 0 {
		if err := s.cache.RemoveRankings(ctx, userID, removed); err != nil {
			s.logger.Warn("failed to evict stale rankings", "user_id", userID, "muscle_groups", removed, "error", err)
		}
	}

	var change *domain.RankChangeEvent
	if previous == nil || previous.Tier != result.Progress.Tier {
		change = &domain.RankChangeEvent{
			UserID:      userID,
			MuscleGroup: domain.MuscleGroupOverall,
			ToPoints:    result.RankPoints,
			ToTier:      result.Progress.Tier,
			Timestamp:   now,
		}
		if previous != nil {
			change.FromPoints = previous.Points
			change.FromTier = previous.Tier
		}
		if err := s.rankings.RecordRankChange(ctx, *change); err != nil {
			s.logger.Warn("failed to record rank change", "user_id", userID, "error", err)
		}
	}

	if s.notifier != nil {
		s.notifier.BroadcastRankUpdate(result, change)
	}

	s.logger.Debug("ranking recalculated",
		"user_id", userID,
		"rank_points", result.RankPoints,
		"tier", result.Progress.Tier.String(),
	)
	return &result, nil
}

// RecalculateUsers recalculates the given users with bounded concurrency.
// Per-user failures are logged and counted; only cancellation is returned.
func (s *RankingService) RecalculateUsers(ctx context.Context, userIDs []int64) (RecalcSummary, error) {
	start := time.Now()

	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.config.Recalc.Concurrency, 1))

	for _, id := range userIDs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := s.RecalculateUser(gctx, id); err != nil {
				failed.Add(1)
				s.logger.Error("failed to recalculate ranking", "user_id", id, "error", err)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	summary := RecalcSummary{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("recalculating users: %w", err)
	}
	return summary, nil
}

// RecalculateAll recalculates every known user
func (s *RankingService) RecalculateAll(ctx context.Context) (RecalcSummary, error) {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return RecalcSummary{}, fmt.Errorf("listing users: %w", err)
	}

	summary, err := s.RecalculateUsers(ctx, ids)
	if err != nil {
		return summary, err
	}

	s.logger.Info("rankings recalculated",
		"processed", summary.Processed,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)
	return summary, nil
}

// RestoreCache reloads every stored snapshot into the cache
func (s *RankingService) RestoreCache(ctx context.Context) (int, error) {
	snapshots, err := s.rankings.ListAllRankings(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing rankings: %w", err)
	}

	byGroup := make(map[string]map[int64]int)
	for _, snap := range snapshots {
		scores, ok := byGroup[snap.MuscleGroup]
		if !ok {
			scores = make(map[int64]int)
			byGroup[snap.MuscleGroup] = scores
		}
		scores[snap.UserID] = snap.Points
	}

	for group, scores := range byGroup {
		if err := s.cache.BatchSetScores(ctx, group, scores); err != nil {
			return 0, fmt.Errorf("restoring %s rankings: %w", group, err)
		}
	}

	s.logger.Info("ranking cache restored", "snapshots", len(snapshots), "muscle_groups", len(byGroup))
	return len(snapshots), nil
}

func (s *RankingService) loadHistory(ctx context.Context, userID int64) (*domain.User, []domain.WorkoutRecord, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("getting user: %w", err)
	}

	workouts, err := s.store.ListWorkouts(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading workouts: %w", err)
	}
	return user, workouts, nil
}

func snapshotsOf(result domain.UserRanking, now time.Time) []domain.RankSnapshot {
	snapshots := make([]domain.RankSnapshot, 0, len(result.MuscleGroups)+1)
	snapshots = append(snapshots, domain.RankSnapshot{
		UserID:      result.UserID,
		MuscleGroup: domain.MuscleGroupOverall,
		Points:      result.RankPoints,
		Tier:        result.Progress.Tier,
		UpdatedAt:   now,
	})
	for _, mg := range result.MuscleGroups {
		snapshots = append(snapshots, domain.RankSnapshot{
			UserID:      result.UserID,
			MuscleGroup: ranking.MuscleGroupKey(mg.MuscleGroup),
			Points:      mg.TotalPoints,
			Tier:        mg.Tier,
			UpdatedAt:   now,
		})
	}
	return snapshots
}
