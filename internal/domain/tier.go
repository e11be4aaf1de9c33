package domain

import (
	"fmt"
	"math"
)

// Tier is a rank tier. The zero value is not a valid tier.
type Tier int

// Rank tiers, ordered lowest to highest. The numeric value is the tier level (1..5).
const (
	TierBronze Tier = iota + 1
	TierSilver
	TierGold
	TierPlatinum
	TierDiamond
)

// Unbounded is the MaxPoints of the top tier
const Unbounded = math.MaxInt

// TierInfo describes one row of the tier table.
// A tier covers [MinPoints, MaxPoints); the top tier has MaxPoints == Unbounded.
type TierInfo struct {
	Tier      Tier   `json:"tier"`
	Level     int    `json:"level"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	MinPoints int    `json:"min_points"`
	MaxPoints int    `json:"-"`
}

// IsTop reports whether no tier exists above this one
func (t TierInfo) IsTop() bool {
	return t.MaxPoints == Unbounded
}

// tierTable is the single source of truth for tier thresholds.
// Ranges are contiguous: each MinPoints equals the previous MaxPoints.
var tierTable = [...]TierInfo{
	{Tier: TierBronze, Level: 1, Name: "Bronze", Color: "#CD7F32", MinPoints: 0, MaxPoints: 100},
	{Tier: TierSilver, Level: 2, Name: "Silver", Color: "#C0C0C0", MinPoints: 100, MaxPoints: 400},
	{Tier: TierGold, Level: 3, Name: "Gold", Color: "#FFD700", MinPoints: 400, MaxPoints: 700},
	{Tier: TierPlatinum, Level: 4, Name: "Platinum", Color: "#E5E4E2", MinPoints: 700, MaxPoints: 1000},
	{Tier: TierDiamond, Level: 5, Name: "Diamond", Color: "#B9F2FF", MinPoints: 1000, MaxPoints: Unbounded},
}

// Tiers returns a copy of the tier table, lowest tier first
func Tiers() []TierInfo {
	out := make([]TierInfo, len(tierTable))
	copy(out, tierTable[:])
	return out
}

// Valid reports whether t is one of the five tiers
func (t Tier) Valid() bool {
	return t >= TierBronze && t <= TierDiamond
}

// Info returns the table row for t. Invalid tiers map to Bronze.
func (t Tier) Info() TierInfo {
	if !t.Valid() {
		return tierTable[0]
	}
	return tierTable[t-1]
}

// Level returns the 1-based ordinal used for display symbols
func (t Tier) Level() int {
	return t.Info().Level
}

// Color returns the presentation color for the tier
func (t Tier) Color() string {
	return t.Info().Color
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierTable[t-1].Name
}

// MarshalText encodes the tier as its display name
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshaling tier %d: %w", int(t), ErrUnknownTier)
	}
	return []byte(t.String()), nil
}

// TierProgress is a point total resolved against the tier table
type TierProgress struct {
	Tier           Tier    `json:"tier"`
	Level          int     `json:"level"`
	Color          string  `json:"color"`
	CurrentPoints  int     `json:"current_points"`
	ProgressToNext float64 `json:"progress_to_next"`
	PointsToNext   int     `json:"points_to_next"`
	NextTier       *Tier   `json:"next_tier,omitempty"`
}
