package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/liftoff-ranking/internal/config"
	"github.com/liftoff-ranking/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

type fakeStore struct {
	users       map[int64]domain.User
	workouts    map[int64][]domain.WorkoutRecord
	friends     map[int64][]int64
	workoutsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]domain.User),
		workouts: make(map[int64][]domain.WorkoutRecord),
		friends:  make(map[int64][]int64),
	}
}

func (f *fakeStore) addUser(id int64, name string, dob time.Time, workouts ...domain.WorkoutRecord) {
	f.users[id] = domain.User{ID: id, Username: name, DateOfBirth: dob}
	f.workouts[id] = workouts
}

func (f *fakeStore) GetUser(_ context.Context, userID int64) (*domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeStore) ListUsers(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(f.users))
	for _, id := range f.sortedIDs() {
		users = append(users, f.users[id])
	}
	return users, nil
}

func (f *fakeStore) ListUserIDs(_ context.Context) ([]int64, error) {
	return f.sortedIDs(), nil
}

func (f *fakeStore) ListWorkouts(_ context.Context, userID int64) ([]domain.WorkoutRecord, error) {
	if f.workoutsErr != nil {
		return nil, f.workoutsErr
	}
	return f.workouts[userID], nil
}

func (f *fakeStore) ListFriendIDs(_ context.Context, userID int64) ([]int64, error) {
	return f.friends[userID], nil
}

func (f *fakeStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type rankingKey struct {
	userID int64
	group  string
}

type fakeRankings struct {
	mu         sync.Mutex
	snapshots  map[rankingKey]domain.RankSnapshot
	events     []domain.RankChangeEvent
	replaceErr error
}

func newFakeRankings() *fakeRankings {
	return &fakeRankings{snapshots: make(map[rankingKey]domain.RankSnapshot)}
}

func (f *fakeRankings) put(userID int64, group string, points int, tier domain.Tier) {
	f.snapshots[rankingKey{userID, group}] = domain.RankSnapshot{
		UserID: userID, MuscleGroup: group, Points: points, Tier: tier,
	}
}

func (f *fakeRankings) GetRanking(_ context.Context, userID int64, group string) (*domain.RankSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[rankingKey{userID, group}]
	if !ok {
		return nil, domain.ErrRankingNotFound
	}
	return &s, nil
}

func (f *fakeRankings) ListRankings(_ context.Context, group string) ([]domain.RankSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RankSnapshot
	for k, s := range f.snapshots {
		if k.group == group {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRankings) ListAllRankings(_ context.Context) ([]domain.RankSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RankSnapshot, 0, len(f.snapshots))
	for _, s := range f.snapshots {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeRankings) ReplaceRankings(_ context.Context, userID int64, snapshots []domain.RankSnapshot) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	keep := make(map[string]bool, len(snapshots))
	for _, s := range snapshots {
		f.snapshots[rankingKey{s.UserID, s.MuscleGroup}] = s
		keep[s.MuscleGroup] = true
	}
	var removed []string
	for k := range f.snapshots {
		if k.userID == userID && !keep[k.group] {
			delete(f.snapshots, k)
			removed = append(removed, k.group)
		}
	}
	slices.Sort(removed)
	return removed, nil
}

func (f *fakeRankings) RecordRankChange(_ context.Context, event domain.RankChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	scores map[string]map[int64]int
	getErr error
	setErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{scores: make(map[string]map[int64]int)}
}

func (f *fakeCache) set(group string, userID int64, points int) {
	if f.scores[group] == nil {
		f.scores[group] = make(map[int64]int)
	}
	f.scores[group][userID] = points
}

func (f *fakeCache) SetRankings(_ context.Context, snapshots []domain.RankSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	for _, s := range snapshots {
		f.set(s.MuscleGroup, s.UserID, s.Points)
	}
	return nil
}

func (f *fakeCache) RemoveRankings(_ context.Context, userID int64, groups []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	for _, g := range groups {
		delete(f.scores[g], userID)
	}
	return nil
}

func (f *fakeCache) GetScores(_ context.Context, group string, userIDs []int64) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make(map[int64]int)
	for _, id := range userIDs {
		if p, ok := f.scores[group][id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeCache) BatchSetScores(_ context.Context, group string, scores map[int64]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	for id, p := range scores {
		f.set(group, id, p)
	}
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	updates []domain.UserRanking
	changes []*domain.RankChangeEvent
}

func (f *fakeNotifier) BroadcastRankUpdate(update domain.UserRanking, change *domain.RankChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	f.changes = append(f.changes, change)
}

type harness struct {
	svc      *RankingService
	store    *fakeStore
	rankings *fakeRankings
	cache    *fakeCache
	notifier *fakeNotifier
}

var testNow = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

func newHarness() *harness {
	h := &harness{
		store:    newFakeStore(),
		rankings: newFakeRankings(),
		cache:    newFakeCache(),
		notifier: &fakeNotifier{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.svc = NewRankingService(h.store, h.rankings, h.cache, h.notifier, config.DefaultConfig(), logger)
	h.svc.now = func() time.Time { return testNow }
	return h
}

func benchDay(daysAgo int) domain.WorkoutRecord {
	return domain.WorkoutRecord{
		ID:   int64(1000 - daysAgo),
		Date: testNow.AddDate(0, 0, -daysAgo),
		Exercises: []domain.ExerciseEntry{
			{Name: "Bench Press", Category: "Chest", Sets: 3, Reps: 10, Weight: 100},
		},
	}
}
