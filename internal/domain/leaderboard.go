package domain

import (
	"time"
)

// Scope selects which population a leaderboard ranks
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeFriends Scope = "friends"
)

// MuscleGroupOverall is the muscle-group key of the overall ranking
const MuscleGroupOverall = "overall"

// UserStats is derived from a user's workout history on every request.
// All fields are zero for an empty history.
type UserStats struct {
	TotalWorkouts    int     `json:"total_workouts"`
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	TotalExercises   int     `json:"total_exercises"`
	WorkoutDays      int     `json:"workout_days"`
	PersonalRecords  int     `json:"personal_records"`
	ConsistencyScore int     `json:"consistency_score"`
	TotalVolume      float64 `json:"total_volume"`
}

// MuscleGroupScore is the ranking of a user within one exercise category
type MuscleGroupScore struct {
	MuscleGroup   string  `json:"muscle_group"`
	WorkoutCount  int     `json:"workout_count"`
	TotalVolume   float64 `json:"total_volume"`
	WorkoutPoints int     `json:"workout_points"`
	VolumePoints  int     `json:"volume_points"`
	TotalPoints   int     `json:"total_points"`
	Tier          Tier    `json:"rank_tier"`
}

// UserRanking is the full rank state of one user
type UserRanking struct {
	UserID       int64              `json:"user_id"`
	Username     string             `json:"username,omitempty"`
	Stats        UserStats          `json:"stats"`
	RankPoints   int                `json:"rank_points"`
	Progress     TierProgress       `json:"progress"`
	MuscleGroups []MuscleGroupScore `json:"muscle_groups,omitempty"`
	CalculatedAt time.Time          `json:"calculated_at"`
}

// RankSnapshot is the persisted rank of a user for one muscle group
type RankSnapshot struct {
	UserID      int64     `json:"user_id"`
	MuscleGroup string    `json:"muscle_group"`
	Points      int       `json:"points"`
	Tier        Tier      `json:"rank_tier"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RankChangeEvent records a tier transition for auditing
type RankChangeEvent struct {
	UserID      int64     `json:"user_id"`
	MuscleGroup string    `json:"muscle_group"`
	FromPoints  int       `json:"from_points"`
	ToPoints    int       `json:"to_points"`
	FromTier    Tier      `json:"from_tier,omitempty"`
	ToTier      Tier      `json:"to_tier"`
	Timestamp   time.Time `json:"timestamp"`
}

// LeaderboardEntry is one row of a leaderboard, built fresh per query
type LeaderboardEntry struct {
	Position    int    `json:"rank"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"username"`
	RankPoints  int    `json:"rank_points"`
	RankTier    Tier   `json:"rank_tier"`
	Color       string `json:"rank_color"`
}

// LeaderboardView is an ordered leaderboard, descending by RankPoints
type LeaderboardView struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// Len returns the number of ranked users
func (v LeaderboardView) Len() int {
	return len(v.Entries)
}

// Find returns the entry for userID
func (v LeaderboardView) Find(userID int64) (LeaderboardEntry, bool) {
	for _, e := range v.Entries {
		if e.UserID == userID {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}

// Page returns the 1-based page of the view. Out-of-range pages are empty.
func (v LeaderboardView) Page(page, perPage int) []LeaderboardEntry {
	if page < 1 || perPage < 1 {
		return []LeaderboardEntry{}
	}
	start := (page - 1) * perPage
	if start >= len(v.Entries) {
		return []LeaderboardEntry{}
	}
	end := start + perPage
	if end > len(v.Entries) {
		end = len(v.Entries)
	}
	return v.Entries[start:end]
}

// LeaderboardQuery is a leaderboard request from the API layer
type LeaderboardQuery struct {
	Scope         Scope  `json:"scope"`
	CurrentUserID int64  `json:"-"`
	MuscleGroup   string `json:"muscle_group,omitempty" validate:"omitempty,max=64"`
	MinAge        int    `json:"min_age,omitempty" validate:"omitempty,min=0,max=150"`
	MaxAge        int    `json:"max_age,omitempty" validate:"omitempty,min=0,max=150,gtefield=MinAge"`
	Page          int    `json:"page" validate:"omitempty,min=1"`
	PerPage       int    `json:"per_page" validate:"omitempty,min=1"`
}

// LeaderboardPage is a paginated leaderboard response
type LeaderboardPage struct {
	Scope            Scope              `json:"scope"`
	MuscleGroup      string             `json:"muscle_group"`
	Entries          []LeaderboardEntry `json:"leaderboard"`
	CurrentUserRank  int                `json:"current_user_rank,omitempty"`
	CurrentUserEntry *LeaderboardEntry  `json:"current_user_entry,omitempty"`
	TotalUsers       int                `json:"total_users"`
	TotalPages       int                `json:"total_pages"`
	Page             int                `json:"current_page"`
	PerPage          int                `json:"per_page"`
}
