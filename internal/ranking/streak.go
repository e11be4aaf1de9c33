package ranking

import (
	"slices"
	"time"
)

// Streaks holds the current and longest runs of consecutive workout days
type Streaks struct {
	Current int `json:"current_streak"`
	Longest int `json:"longest_streak"`
}

// ComputeStreaks derives activity streaks from workout dates.
//
// The current streak is alive when the most recent workout on or before today
// fell on today or yesterday; it then extends back one calendar day at a time
// and stops at the first missing day. Workouts dated after today do not count
// toward the current streak but do count toward the longest one.
func ComputeStreaks(dates []time.Time, today time.Time) Streaks {
	set := distinctDays(dates)
	if len(set) == 0 {
		return Streaks{}
	}

	days := make([]day, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	slices.Sort(days)

	s := Streaks{
		Current: currentStreak(days, dayOf(today)),
		Longest: longestStreak(days),
	}
	assertf(s.Longest >= s.Current, "longest streak %d below current streak %d", s.Longest, s.Current)
	return s
}

// currentStreak walks the ascending days backwards from today
func currentStreak(days []day, today day) int {
	i := len(days) - 1
	for i >= 0 && days[i] > today {
		i--
	}
	if i < 0 {
		return 0
	}
	if gap := today - days[i]; gap > 1 {
		return 0
	}

	streak := 1
	prev := days[i]
	for i--; i >= 0; i-- {
		if days[i] != prev-1 {
			break
		}
		streak++
		prev = days[i]
	}
	return streak
}

func longestStreak(days []day) int {
	if len(days) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
