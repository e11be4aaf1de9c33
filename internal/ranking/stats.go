package ranking

import (
	"strings"
	"time"

	"github.com/liftoff-ranking/internal/domain"
)

const (
	// consistencyPerWorkout is earned per weekly workout; 5 a week saturates
	consistencyPerWorkout = 20
	maxConsistency        = 100

	// workoutsPerRecord approximates personal records until real PR tracking exists
	workoutsPerRecord = 5
)

// AggregateStats reduces a user's workout history to summary statistics.
//
// Records without a date still count as workouts and contribute exercises,
// but are left out of streaks and the day span.
func AggregateStats(workouts []domain.WorkoutRecord, today time.Time) domain.UserStats {
	if len(workouts) == 0 {
		return domain.UserStats{}
	}

	names := make(map[string]struct{})
	dates := make([]time.Time, 0, len(workouts))
	var volume float64
	for _, w := range workouts {
		if w.HasDate() {
			dates = append(dates, w.Date)
		}
		for _, ex := range w.Exercises {
			if name := normalizeName(ex.Name); name != "" {
				names[name] = struct{}{}
			}
			volume += ex.Volume()
		}
	}

	total := len(workouts)
	span := daySpan(dates)
	streaks := ComputeStreaks(dates, today)

	return domain.UserStats{
		TotalWorkouts:    total,
		CurrentStreak:    streaks.Current,
		LongestStreak:    streaks.Longest,
		TotalExercises:   len(names),
		WorkoutDays:      span,
		PersonalRecords:  total / workoutsPerRecord,
		ConsistencyScore: consistencyScore(total, span),
		TotalVolume:      volume,
	}
}

// daySpan is the inclusive number of calendar days from the first to the last date
func daySpan(dates []time.Time) int {
	if len(dates) == 0 {
		return 0
	}
	first, last := dayOf(dates[0]), dayOf(dates[0])
	for _, t := range dates[1:] {
		d := dayOf(t)
		if d < first {
			first = d
		}
		if d > last {
			last = d
		}
	}
	return int(last-first) + 1
}

// consistencyScore rewards workouts per week over the span, with a one-week floor
func consistencyScore(totalWorkouts, workoutDays int) int {
	if totalWorkouts <= 0 {
		return 0
	}
	weeks := float64(workoutDays) / 7
	if weeks < 1 {
		weeks = 1
	}
	score := int(float64(totalWorkouts) / weeks * consistencyPerWorkout)
	if score > maxConsistency {
		return maxConsistency
	}
	return score
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
