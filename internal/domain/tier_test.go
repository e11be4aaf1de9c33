package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiers_TableIsContiguous(t *testing.T) {
	tiers := Tiers()

	require.Len(t, tiers, 5)
	assert.Equal(t, 0, tiers[0].MinPoints)
	for i, info := range tiers {
		assert.Equal(t, i+1, info.Level)
		assert.Equal(t, Tier(i+1), info.Tier)
		if i > 0 {
			assert.Equal(t, tiers[i-1].MaxPoints, info.MinPoints, "gap or overlap below %s", info.Name)
			assert.Less(t, tiers[i-1].Tier, info.Tier)
		}
		assert.Equal(t, i == len(tiers)-1, info.IsTop())
	}
}

func TestTiers_ReturnsCopy(t *testing.T) {
	tiers := Tiers()
	tiers[0].MinPoints = 999
	tiers[0].Name = "Tin"

	assert.Equal(t, 0, Tiers()[0].MinPoints)
	assert.Equal(t, "Bronze", TierBronze.String())
}

func TestTier_Accessors(t *testing.T) {
	assert.Equal(t, "Gold", TierGold.String())
	assert.Equal(t, 3, TierGold.Level())
	assert.Equal(t, "#FFD700", TierGold.Color())
	assert.False(t, Tier(0).Valid())
	assert.False(t, Tier(6).Valid())
	assert.Equal(t, "Tier(9)", Tier(9).String())
	assert.Equal(t, TierBronze, Tier(0).Info().Tier)
}

func TestTier_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Tier{"tier": TierPlatinum})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"Platinum"}`, string(data))

	_, err = json.Marshal(Tier(0))
	assert.ErrorIs(t, err, ErrUnknownTier)
}
