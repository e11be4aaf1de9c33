package service

import (
	"context"
	"fmt"

	"github.com/liftoff-ranking/internal/domain"
	"github.com/liftoff-ranking/internal/ranking"
)

// GetLeaderboard ranks the users in the requested scope and returns one page.
//
// Users come from the store in user id order, so equal point totals are
// ordered by user id. Points are read from the cache with the stored
// snapshots as fallback; users never ranked count as 0 points.
func (s *RankingService) GetLeaderboard(ctx context.Context, q domain.LeaderboardQuery) (*domain.LeaderboardPage, error) {
	if q.Scope == "" {
		q.Scope = domain.ScopeGlobal
	}
	if q.Scope != domain.ScopeGlobal && q.Scope != domain.ScopeFriends {
		return nil, domain.ErrInvalidScope
	}
	if q.Scope == domain.ScopeFriends && q.CurrentUserID <= 0 {
		return nil, domain.ErrUnauthenticated
	}

	group := ranking.MuscleGroupKey(q.MuscleGroup)
	if group == "" {
		group = domain.MuscleGroupOverall
	}
	page, perPage := s.clampPage(q.Page, q.PerPage)

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	points := s.loadPoints(ctx, group, ids)

	candidates := make([]ranking.Candidate, len(users))
	for i, u := range users {
		candidates[i] = ranking.Candidate{
			UserID:      u.ID,
			DisplayName: u.Username,
			RankPoints:  points[u.ID],
			DateOfBirth: u.DateOfBirth,
		}
	}

	filters := []ranking.Filter{ranking.AgeRange(q.MinAge, q.MaxAge, s.now())}
	if q.Scope == domain.ScopeFriends {
		friends, err := s.store.ListFriendIDs(ctx, q.CurrentUserID)
		if err != nil {
			return nil, fmt.Errorf("listing friends: %w", err)
		}
		filters = append(filters, ranking.FriendsOnly(append(friends, q.CurrentUserID)))
	}

	view := ranking.BuildLeaderboard(candidates, ranking.All(filters...))

	result := &domain.LeaderboardPage{
		Scope:       q.Scope,
		MuscleGroup: group,
		Entries:     view.Page(page, perPage),
		TotalUsers:  view.Len(),
		TotalPages:  (view.Len() + perPage - 1) / perPage,
		Page:        page,
		PerPage:     perPage,
	}
	if q.CurrentUserID > 0 {
		if entry, ok := view.Find(q.CurrentUserID); ok {
			result.CurrentUserRank = entry.Position
			result.CurrentUserEntry = &entry
		}
	}
	return result, nil
}

// loadPoints returns the points of every user that has a ranking. Cache and
// store failures degrade to missing entries.
func (s *RankingService) loadPoints(ctx context.Context, group string, ids []int64) map[int64]int {
	points, err := s.cache.GetScores(ctx, group, ids)
	if err != nil {
		s.logger.Warn("failed to read cached rankings", "muscle_group", group, "error", err)
		points = make(map[int64]int, len(ids))
	}
	if len(points) == len(ids) {
		return points
	}

	snapshots, err := s.rankings.ListRankings(ctx, group)
	if err != nil {
		s.logger.Warn("failed to read stored rankings", "muscle_group", group, "error", err)
		return points
	}

	backfill := make(map[int64]int)
	for _, snap := range snapshots {
		if _, ok := points[snap.UserID]; ok {
			continue
		}
		points[snap.UserID] = snap.Points
		backfill[snap.UserID] = snap.Points
	}

	if err := s.cache.BatchSetScores(ctx, group, backfill); err != nil {
		s.logger.Warn("failed to backfill ranking cache", "muscle_group", group, "error", err)
	}
	return points
}

func (s *RankingService) clampPage(page, perPage int) (int, int) {
	cfg := s.config.Leaderboard
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = cfg.DefaultPageSize
	}
	if perPage > cfg.MaxPageSize {
		perPage = cfg.MaxPageSize
	}
	return page, max(perPage, 1)
}
