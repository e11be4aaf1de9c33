package ranking

import (
	"cmp"
	"slices"
	"time"

	"github.com/liftoff-ranking/internal/domain"
)

// Candidate is a user with an already computed point total
type Candidate struct {
	UserID      int64
	DisplayName string
	RankPoints  int
	DateOfBirth time.Time
}

// Filter decides whether a candidate takes part in a leaderboard
type Filter func(Candidate) bool

// BuildLeaderboard ranks candidates by points, highest first.
//
// The filter runs before ranking, so positions are 1..N among the candidates
// that pass it. Candidates with equal points keep their input order. A nil
// filter admits everyone. The input slice is not modified.
func BuildLeaderboard(candidates []Candidate, filter Filter) domain.LeaderboardView {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if filter == nil || filter(c) {
			kept = append(kept, c)
		}
	}

	slices.SortStableFunc(kept, func(a, b Candidate) int {
		return cmp.Compare(nonNegative(b.RankPoints), nonNegative(a.RankPoints))
	})

	entries := make([]domain.LeaderboardEntry, len(kept))
	for i, c := range kept {
		points := nonNegative(c.RankPoints)
		tier := TierFor(points)
		entries[i] = domain.LeaderboardEntry{
			Position:    i + 1,
			UserID:      c.UserID,
			DisplayName: c.DisplayName,
			RankPoints:  points,
			RankTier:    tier.Tier,
			Color:       tier.Color,
		}
	}
	return domain.LeaderboardView{Entries: entries}
}

// FriendsOnly admits the given user ids
func FriendsOnly(ids []int64) Filter {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(c Candidate) bool {
		_, ok := set[c.UserID]
		return ok
	}
}

// AgeRange admits candidates whose age on today lies in [minAge, maxAge].
// A zero bound is open. Candidates without a birth date are excluded as soon
// as either bound is set.
func AgeRange(minAge, maxAge int, today time.Time) Filter {
	return func(c Candidate) bool {
		if minAge <= 0 && maxAge <= 0 {
			return true
		}
		if c.DateOfBirth.IsZero() {
			return false
		}
		age := AgeOn(c.DateOfBirth, today)
		if minAge > 0 && age < minAge {
			return false
		}
		if maxAge > 0 && age > maxAge {
			return false
		}
		return true
	}
}

// All admits candidates accepted by every non-nil filter
func All(filters ...Filter) Filter {
	return func(c Candidate) bool {
		for _, f := range filters {
			if f != nil && !f(c) {
				return false
			}
		}
		return true
	}
}

// AgeOn returns the age in whole years on the UTC date of today
func AgeOn(birth, today time.Time) int {
	by, bm, bd := birth.UTC().Date()
	ty, tm, td := today.UTC().Date()
	age := ty - by
	if tm < bm || (tm == bm && td < bd) {
		age--
	}
	return age
}
