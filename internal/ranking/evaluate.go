package ranking

import (
	"time"

	"github.com/liftoff-ranking/internal/domain"
)

// Evaluate runs the whole pipeline for one user: statistics, points, tier
// progress and per-muscle-group scores.
func Evaluate(userID int64, workouts []domain.WorkoutRecord, now time.Time) domain.UserRanking {
	stats := AggregateStats(workouts, now)
	points := ScorePoints(stats)
	return domain.UserRanking{
		UserID:       userID,
		Stats:        stats,
		RankPoints:   points,
		Progress:     ResolveTier(points),
		MuscleGroups: ScoreAllMuscleGroups(workouts),
		CalculatedAt: now,
	}
}
