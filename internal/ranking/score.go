package ranking

import "github.com/liftoff-ranking/internal/domain"

// Score weights. Changing any of these moves users between tiers, so a change
// needs a recalculation of every stored ranking.
const (
	weightWorkout        = 2
	weightCurrentStreak  = 3
	weightLongestStreak  = 1
	weightPersonalRecord = 10
	exercisesPerPoint    = 5
	daysPerPoint         = 7
)

// ScorePoints maps summary statistics to a non-negative point total.
// It is monotone: raising any single field never lowers the result.
func ScorePoints(stats domain.UserStats) int {
	return weightWorkout*nonNegative(stats.TotalWorkouts) +
		weightCurrentStreak*nonNegative(stats.CurrentStreak) +
		weightLongestStreak*nonNegative(stats.LongestStreak) +
		nonNegative(stats.TotalExercises)/exercisesPerPoint +
		nonNegative(stats.ConsistencyScore) +
		weightPersonalRecord*nonNegative(stats.PersonalRecords) +
		nonNegative(stats.WorkoutDays)/daysPerPoint
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
