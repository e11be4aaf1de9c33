package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liftoff-ranking/internal/domain"
)

func TestScorePoints(t *testing.T) {
	tests := []struct {
		name  string
		stats domain.UserStats
		want  int
	}{
		{
			name:  "empty history",
			stats: domain.UserStats{},
			want:  0,
		},
		{
			name: "mixed history",
			stats: domain.UserStats{
				TotalWorkouts:    50,
				CurrentStreak:    7,
				LongestStreak:    10,
				TotalExercises:   20,
				WorkoutDays:      60,
				PersonalRecords:  10,
				ConsistencyScore: 80,
			},
			// 100 + 21 + 10 + 4 + 80 + 100 + 8
			want: 323,
		},
		{
			name:  "exercise and day terms floor",
			stats: domain.UserStats{TotalExercises: 9, WorkoutDays: 13},
			want:  2,
		},
		{
			name:  "negative fields are clamped before summing",
			stats: domain.UserStats{TotalWorkouts: -5, CurrentStreak: -1, ConsistencyScore: 10},
			want:  10,
		},
		{
			name:  "volume does not score",
			stats: domain.UserStats{TotalVolume: 1e6},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScorePoints(tt.stats)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}

func TestScorePoints_Monotone(t *testing.T) {
	fields := map[string]func(*domain.UserStats, int){
		"total_workouts":    func(s *domain.UserStats, v int) { s.TotalWorkouts = v },
		"current_streak":    func(s *domain.UserStats, v int) { s.CurrentStreak = v },
		"longest_streak":    func(s *domain.UserStats, v int) { s.LongestStreak = v },
		"total_exercises":   func(s *domain.UserStats, v int) { s.TotalExercises = v },
		"workout_days":      func(s *domain.UserStats, v int) { s.WorkoutDays = v },
		"personal_records":  func(s *domain.UserStats, v int) { s.PersonalRecords = v },
		"consistency_score": func(s *domain.UserStats, v int) { s.ConsistencyScore = v },
	}
	bases := []domain.UserStats{
		{},
		{TotalWorkouts: 12, CurrentStreak: 2, LongestStreak: 5, TotalExercises: 7, WorkoutDays: 30, PersonalRecords: 2, ConsistencyScore: 55},
	}

	for name, set := range fields {
		t.Run(name, func(t *testing.T) {
			for _, base := range bases {
				prev := -1
				for v := -3; v <= 120; v++ {
					s := base
					set(&s, v)
					got := ScorePoints(s)
					assert.GreaterOrEqual(t, got, prev, "%s=%d", name, v)
					prev = got
				}
			}
		})
	}
}
