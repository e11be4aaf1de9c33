package ranking

import (
	"strings"

	"github.com/liftoff-ranking/internal/domain"
)

// volumePointRate converts lifted volume (sets*reps*weight) into points
const volumePointRate = 0.1

// MuscleGroups lists the distinct exercise categories in first-seen order.
// Categories compare case-insensitively; the first spelling wins.
func MuscleGroups(workouts []domain.WorkoutRecord) []string {
	seen := make(map[string]struct{})
	var groups []string
	for _, w := range workouts {
		for _, ex := range w.Exercises {
			key := normalizeName(ex.Category)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			groups = append(groups, strings.TrimSpace(ex.Category))
		}
	}
	return groups
}

// MuscleGroupKey is the canonical storage key of a category name
func MuscleGroupKey(name string) string {
	return normalizeName(name)
}

// ScoreMuscleGroup ranks a user's history within one exercise category:
// two points per workout that trained it plus a tenth of its lifted volume.
func ScoreMuscleGroup(workouts []domain.WorkoutRecord, muscleGroup string) domain.MuscleGroupScore {
	key := normalizeName(muscleGroup)
	score := domain.MuscleGroupScore{MuscleGroup: muscleGroup}

	for _, w := range workouts {
		trained := false
		for _, ex := range w.Exercises {
			if key == "" || normalizeName(ex.Category) != key {
				continue
			}
			trained = true
			score.TotalVolume += ex.Volume()
		}
		if trained {
			score.WorkoutCount++
		}
	}

	score.WorkoutPoints = weightWorkout * score.WorkoutCount
	score.VolumePoints = int(score.TotalVolume * volumePointRate)
	score.TotalPoints = score.WorkoutPoints + score.VolumePoints
	score.Tier = TierFor(score.TotalPoints).Tier
	return score
}

// ScoreAllMuscleGroups scores every category present in the history
func ScoreAllMuscleGroups(workouts []domain.WorkoutRecord) []domain.MuscleGroupScore {
	groups := MuscleGroups(workouts)
	scores := make([]domain.MuscleGroupScore, 0, len(groups))
	for _, g := range groups {
		scores = append(scores, ScoreMuscleGroup(workouts, g))
	}
	return scores
}
