package ranking

import "github.com/liftoff-ranking/internal/domain"

// TierFor returns the tier whose [MinPoints, MaxPoints) range contains points.
// Negative totals resolve to the lowest tier.
func TierFor(points int) domain.TierInfo {
	tiers := domain.Tiers()
	for i := len(tiers) - 1; i > 0; i-- {
		if points >= tiers[i].MinPoints {
			return tiers[i]
		}
	}
	return tiers[0]
}

// ResolveTier maps a point total to its tier and the progress toward the next one
func ResolveTier(points int) domain.TierProgress {
	points = nonNegative(points)
	info := TierFor(points)

	p := domain.TierProgress{
		Tier:          info.Tier,
		Level:         info.Level,
		Color:         info.Color,
		CurrentPoints: points,
	}
	if info.IsTop() {
		p.ProgressToNext = 100
		return p
	}

	span := info.MaxPoints - info.MinPoints
	p.ProgressToNext = clampPercent(100 * float64(points-info.MinPoints) / float64(span))
	p.PointsToNext = info.MaxPoints - points
	next := info.Tier + 1
	p.NextTier = &next
	return p
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
