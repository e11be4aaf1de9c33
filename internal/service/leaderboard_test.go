package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftoff-ranking/internal/domain"
)

func entryIDs(entries []domain.LeaderboardEntry) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	return ids
}

func seedLeaderboard(h *harness) {
	h.store.addUser(1, "ada", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	h.store.addUser(2, "bob", time.Date(1980, 6, 1, 0, 0, 0, 0, time.UTC))
	h.store.addUser(3, "cy", time.Date(1995, 3, 11, 0, 0, 0, 0, time.UTC))
	h.store.addUser(4, "dee", time.Time{})

	h.cache.set(domain.MuscleGroupOverall, 1, 50)
	h.cache.set(domain.MuscleGroupOverall, 2, 500)
	h.cache.set(domain.MuscleGroupOverall, 3, 500)
	h.cache.set(domain.MuscleGroupOverall, 4, 1200)
}

func TestGetLeaderboard_Global(t *testing.T) {
	h := newHarness()
	seedLeaderboard(h)

	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{
		Scope:         domain.ScopeGlobal,
		CurrentUserID: 1,
		Page:          1,
		PerPage:       2,
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{4, 2}, entryIDs(page.Entries))
	assert.Equal(t, 4, page.TotalUsers)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, domain.MuscleGroupOverall, page.MuscleGroup)
	assert.Equal(t, domain.TierDiamond, page.Entries[0].RankTier)
	assert.Equal(t, domain.TierGold, page.Entries[1].RankTier)

	assert.Equal(t, 4, page.CurrentUserRank)
	require.NotNil(t, page.CurrentUserEntry)
	assert.Equal(t, 50, page.CurrentUserEntry.RankPoints)
}

func TestGetLeaderboard_TiesOrderedByUserID(t *testing.T) {
	h := newHarness()
	seedLeaderboard(h)

	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{PerPage: 10})
	require.NoError(t, err)

	assert.Equal(t, domain.ScopeGlobal, page.Scope)
	assert.Equal(t, []int64{4, 2, 3, 1}, entryIDs(page.Entries))
	for i, e := range page.Entries {
		assert.Equal(t, i+1, e.Position)
	}
}

func TestGetLeaderboard_FallsBackToStoredSnapshots(t *testing.T) {
	h := newHarness()
	h.store.addUser(1, "ada", time.Time{})
	h.store.addUser(2, "bob", time.Time{})
	h.store.addUser(3, "cy", time.Time{})
	h.cache.set(domain.MuscleGroupOverall, 1, 150)
	h.rankings.put(2, domain.MuscleGroupOverall, 300, domain.TierSilver)

	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{PerPage: 10})
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 1, 3}, entryIDs(page.Entries))
	assert.Equal(t, 0, page.Entries[2].RankPoints)
	assert.Equal(t, domain.TierBronze, page.Entries[2].RankTier)
	assert.Equal(t, 300, h.cache.scores[domain.MuscleGroupOverall][2], "fallback backfills the cache")
}

func TestGetLeaderboard_CacheDown(t *testing.T) {
	h := newHarness()
	h.store.addUser(1, "ada", time.Time{})
	h.store.addUser(2, "bob", time.Time{})
	h.rankings.put(2, domain.MuscleGroupOverall, 300, domain.TierSilver)
	h.cache.getErr = errors.New("redis down")

	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, entryIDs(page.Entries))
}

func TestGetLeaderboard_Friends(t *testing.T) {
	h := newHarness()
	seedLeaderboard(h)
	h.store.friends[1] = []int64{3}

	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{
		Scope:         domain.ScopeFriends,
		CurrentUserID: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 1}, entryIDs(page.Entries))
	assert.Equal(t, 2, page.TotalUsers)
	assert.Equal(t, 2, page.CurrentUserRank)
}

func TestGetLeaderboard_FriendsRequiresIdentity(t *testing.T) {
	h := newHarness()
	_, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{Scope: domain.ScopeFriends})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestGetLeaderboard_InvalidScope(t *testing.T) {
	h := newHarness()
	_, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{Scope: "galaxy"})
	assert.ErrorIs(t, err, domain.ErrInvalidScope)
}

func TestGetLeaderboard_AgeFilter(t *testing.T) {
	h := newHarness()
	seedLeaderboard(h)

	// On 2026-03-10: ada 26, bob 45, cy 30 (birthday tomorrow), dee unknown
	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{
		MinAge: 25,
		MaxAge: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 1}, entryIDs(page.Entries))
	assert.Equal(t, 1, page.Entries[0].Position)
}

func TestGetLeaderboard_MuscleGroup(t *testing.T) {
	h := newHarness()
	h.store.addUser(1, "ada", time.Time{})
	h.store.addUser(2, "bob", time.Time{})
	h.cache.set("legs", 1, 10)
	h.cache.set("legs", 2, 352)

	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{MuscleGroup: " Legs "})
	require.NoError(t, err)

	assert.Equal(t, "legs", page.MuscleGroup)
	assert.Equal(t, []int64{2, 1}, entryIDs(page.Entries))
}

func TestGetLeaderboard_PageClamping(t *testing.T) {
	h := newHarness()
	seedLeaderboard(h)

	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{Page: 0, PerPage: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PerPage)
	assert.Equal(t, 1, page.TotalPages)

	page, err = h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{Page: 9, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.NotNil(t, page.Entries)
	assert.Equal(t, 4, page.TotalUsers)
}

func TestGetLeaderboard_DefaultPageSize(t *testing.T) {
	h := newHarness()
	seedLeaderboard(h)

	page, err := h.svc.GetLeaderboard(context.Background(), domain.LeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 20, page.PerPage)
	assert.Len(t, page.Entries, 4)
}
