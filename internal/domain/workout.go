package domain

import "time"

// User is the subset of the account record the ranking service needs
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DateOfBirth time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExerciseEntry is one exercise performed inside a workout.
// Weight and Reps are optional; zero means "not recorded".
type ExerciseEntry struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
}

// Volume returns sets*reps*weight, or 0 when reps or weight were not recorded
func (e ExerciseEntry) Volume() float64 {
	if e.Sets <= 0 || e.Reps <= 0 || e.Weight <= 0 {
		return 0
	}
	return float64(e.Sets) * float64(e.Reps) * e.Weight
}

// WorkoutRecord is a logged workout as returned by the workout store.
// A zero Date marks a record whose date was missing or unparseable.
type WorkoutRecord struct {
	ID        int64           `json:"id"`
	Date      time.Time       `json:"date"`
	Exercises []ExerciseEntry `json:"exercises"`
}

// HasDate reports whether the record carries a usable date
func (w WorkoutRecord) HasDate() bool {
	return !w.Date.IsZero()
}

// WorkoutEvent is published by the workout store whenever a user's history changes
type WorkoutEvent struct {
	UserID    int64     `json:"user_id"`
	WorkoutID int64     `json:"workout_id,omitempty"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Workout event types
const (
	WorkoutEventLogged  = "logged"
	WorkoutEventUpdated = "updated"
	WorkoutEventDeleted = "deleted"
)
