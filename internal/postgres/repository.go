package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liftoff-ranking/internal/config"
	"github.com/liftoff-ranking/internal/domain"
	"github.com/liftoff-ranking/internal/ranking"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations creates the ranking tables. The user, workout and friendship
// tables belong to the workout store and are only created when missing so a
// fresh development database works.
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGSERIAL PRIMARY KEY,
			username VARCHAR(80) NOT NULL UNIQUE,
			date_of_birth DATE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS workouts (
			workout_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			workout_date TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS exercises (
			exercise_id BIGSERIAL PRIMARY KEY,
			name VARCHAR(120) NOT NULL,
			muscle_group VARCHAR(64)
		)`,
		`CREATE TABLE IF NOT EXISTS workout_exercises (
			id BIGSERIAL PRIMARY KEY,
			workout_id BIGINT NOT NULL REFERENCES workouts(workout_id) ON DELETE CASCADE,
			exercise_id BIGINT NOT NULL REFERENCES exercises(exercise_id),
			sets INT NOT NULL DEFAULT 0,
			reps INT,
			weight DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS friends (
			friendship_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			friend_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_rankings (
			ranking_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			muscle_group VARCHAR(64) NOT NULL,
			mmr_score INT NOT NULL,
			rank_tier VARCHAR(20) NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, muscle_group)
		)`,
		`CREATE TABLE IF NOT EXISTS rank_change_events (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			muscle_group VARCHAR(64) NOT NULL,
			from_points INT NOT NULL,
			to_points INT NOT NULL,
			from_tier VARCHAR(20),
			to_tier VARCHAR(20) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workouts_user ON workouts(user_id, workout_date)`,
		`CREATE INDEX IF NOT EXISTS idx_friends_user ON friends(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_friends_friend ON friends(friend_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_user_rankings_score ON user_rankings(muscle_group, mmr_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_rank_change_events_user ON rank_change_events(user_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := `
		SELECT user_id, username, date_of_birth, created_at
		FROM users
		WHERE user_id = $1
	`
	var (
		user domain.User
		dob  *time.Time
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &dob, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if dob != nil {
		user.DateOfBirth = *dob
	}
	return &user, nil
}

// ListUsers retrieves all users ordered by ID
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT user_id, username, date_of_birth, created_at
		FROM users
		ORDER BY user_id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			user domain.User
			dob  *time.Time
		)
		if err := rows.Scan(&user.ID, &user.Username, &dob, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		if dob != nil {
			user.DateOfBirth = *dob
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// ListUserIDs retrieves every user ID in ascending order
func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM users ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing user ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning user ids: %w", err)
	}
	return ids, nil
}

// ListWorkouts retrieves a user's workouts with their exercises, oldest first.
// A NULL workout date is returned as the zero time.
func (r *Repository) ListWorkouts(ctx context.Context, userID int64) ([]domain.WorkoutRecord, error) {
	query := `
		SELECT w.workout_id, w.workout_date,
		       e.name, e.muscle_group, we.sets, we.reps, we.weight
		FROM workouts w
		LEFT JOIN workout_exercises we ON we.workout_id = w.workout_id
		LEFT JOIN exercises e ON e.exercise_id = we.exercise_id
		WHERE w.user_id = $1
		ORDER BY w.workout_date ASC NULLS LAST, w.workout_id ASC, we.id ASC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}
	defer rows.Close()

	var workouts []domain.WorkoutRecord
	for rows.Next() {
		var (
			workoutID   int64
			workoutDate *time.Time
			name        *string
			muscleGroup *string
			sets        *int
			reps        *int
			weight      *float64
		)
		if err := rows.Scan(&workoutID, &workoutDate, &name, &muscleGroup, &sets, &reps, &weight); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}

		if len(workouts) == 0 || workouts[len(workouts)-1].ID != workoutID {
			record := domain.WorkoutRecord{ID: workoutID}
			if workoutDate != nil {
				record.Date = *workoutDate
			}
			workouts = append(workouts, record)
		}

		if name == nil {
			continue
		}
		current := &workouts[len(workouts)-1]
		current.Exercises = append(current.Exercises, domain.ExerciseEntry{
			Name:     *name,
			Category: deref(muscleGroup),
			Sets:     deref(sets),
			Reps:     deref(reps),
			Weight:   deref(weight),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workouts: %w", err)
	}
	return workouts, nil
}

// ListFriendIDs retrieves the accepted friends of a user, in either direction
func (r *Repository) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT CASE WHEN user_id = $1 THEN friend_id ELSE user_id END
		FROM friends
		WHERE status = 'accepted' AND (user_id = $1 OR friend_id = $1)
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning friends: %w", err)
	}
	return ids, nil
}

// GetRanking retrieves a stored ranking snapshot
func (r *Repository) GetRanking(ctx context.Context, userID int64, muscleGroup string) (*domain.RankSnapshot, error) {
	query := `
		SELECT user_id, muscle_group, mmr_score, updated_at
		FROM user_rankings
		WHERE user_id = $1 AND muscle_group = $2
	`
	snapshot, err := scanSnapshot(r.pool.QueryRow(ctx, query, userID, muscleGroup))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRankingNotFound
		}
		return nil, fmt.Errorf("getting ranking: %w", err)
	}
	return &snapshot, nil
}

// ListRankings retrieves all snapshots for one muscle group
func (r *Repository) ListRankings(ctx context.Context, muscleGroup string) ([]domain.RankSnapshot, error) {
	query := `
		SELECT user_id, muscle_group, mmr_score, updated_at
		FROM user_rankings
		WHERE muscle_group = $1
		ORDER BY user_id ASC
	`
	rows, err := r.pool.Query(ctx, query, muscleGroup)
	if err != nil {
		return nil, fmt.Errorf("listing rankings: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.RankSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ranking: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rankings: %w", err)
	}
	return snapshots, nil
}

// ListAllRankings retrieves every stored snapshot
func (r *Repository) ListAllRankings(ctx context.Context) ([]domain.RankSnapshot, error) {
	query := `
		SELECT user_id, muscle_group, mmr_score, updated_at
		FROM user_rankings
		ORDER BY muscle_group ASC, user_id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing all rankings: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.RankSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ranking: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rankings: %w", err)
	}
	return snapshots, nil
}

// ReplaceRankings stores a user's snapshots and deletes the user's snapshots
// for any other muscle group in one transaction. It returns the muscle groups
// it deleted.
func (r *Repository) ReplaceRankings(ctx context.Context, userID int64, snapshots []domain.RankSnapshot) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	groups := make([]string, len(snapshots))
	if len(snapshots) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO user_rankings (user_id, muscle_group, mmr_score, rank_tier, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, muscle_group)
			DO UPDATE SET mmr_score = $3, rank_tier = $4, updated_at = $5
		`
		for i, s := range snapshots {
			groups[i] = s.MuscleGroup
			batch.Queue(query, userID, s.MuscleGroup, s.Points, s.Tier.String(), s.UpdatedAt)
		}

		br := tx.SendBatch(ctx, batch)
		for range snapshots {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return nil, fmt.Errorf("upserting rankings: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return nil, fmt.Errorf("upserting rankings: %w", err)
		}
	}

	rows, err := tx.Query(ctx, `
		DELETE FROM user_rankings
		WHERE user_id = $1 AND muscle_group <> ALL($2)
		RETURNING muscle_group
	`, userID, groups)
	if err != nil {
		return nil, fmt.Errorf("deleting stale rankings: %w", err)
	}
	removed, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("deleting stale rankings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing rankings: %w", err)
	}

	if len(removed) > 0 {
		r.logger.Debug("removed stale rankings", "user_id", userID, "muscle_groups", removed)
	}
	return removed, nil
}

// RecordRankChange records a tier transition for auditing
func (r *Repository) RecordRankChange(ctx context.Context, event domain.RankChangeEvent) error {
	var fromTier *string
	if event.FromTier.Valid() {
		name := event.FromTier.String()
		fromTier = &name
	}

	query := `
		INSERT INTO rank_change_events (user_id, muscle_group, from_points, to_points, from_tier, to_tier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		event.UserID,
		event.MuscleGroup,
		event.FromPoints,
		event.ToPoints,
		fromTier,
		event.ToTier.String(),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording rank change: %w", err)
	}
	return nil
}

// scanSnapshot reads a snapshot row. The stored rank_tier label is for
// humans reading the table; the tier is resolved from the points.
func scanSnapshot(row pgx.Row) (domain.RankSnapshot, error) {
	var s domain.RankSnapshot
	if err := row.Scan(&s.UserID, &s.MuscleGroup, &s.Points, &s.UpdatedAt); err != nil {
		return s, err
	}
	s.Tier = ranking.TierFor(s.Points).Tier
	return s, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
