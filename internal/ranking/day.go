// Package ranking turns workout history into rank state: streaks, summary
// statistics, a point total, a tier with progress, and ordered leaderboards.
//
// Everything here is a pure function over caller-owned values. Nothing is
// retained between calls and inputs are never mutated, so any function may be
// called concurrently.
//
// Dates are bucketed into UTC calendar days. Two timestamps on the same UTC
// date are the same day regardless of the hour, and day differences are
// computed on calendar days rather than elapsed durations.
package ranking

import "time"

// day is a UTC calendar date expressed as days since 1970-01-01
type day int64

const secondsPerDay = 24 * 60 * 60

// dayOf returns the UTC calendar day containing t
func dayOf(t time.Time) day {
	y, m, d := t.UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
	// UTC midnight is an exact multiple of a day, so this never rounds
	return day(floorDiv(midnight, secondsPerDay))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// distinctDays collapses valid timestamps to their set of calendar days.
// Zero timestamps are skipped.
func distinctDays(dates []time.Time) map[day]struct{} {
	set := make(map[day]struct{}, len(dates))
	for _, t := range dates {
		if t.IsZero() {
			continue
		}
		set[dayOf(t)] = struct{}{}
	}
	return set
}
