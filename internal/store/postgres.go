package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// schemaTemplate is the SQL DDL for all orato tables. The single %d is the
// embedding dimensionality, fixed at first migration; changing the embedding
// model afterwards requires a manual schema change.
const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT         PRIMARY KEY,
    user_id       TEXT         NOT NULL,
    duration_ms   BIGINT       NOT NULL,
    audio_uri     TEXT         NOT NULL DEFAULT '',
    practice_mode TEXT         NOT NULL DEFAULT '',
    transcript    TEXT         NOT NULL,
    analysis      JSONB        NOT NULL,
    score         INT          NOT NULL,
    embedding     vector(%d),
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_created
    ON sessions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_embedding
    ON sessions USING hnsw (embedding vector_cosine_ops);

CREATE TABLE IF NOT EXISTS user_progress (
    user_id              TEXT              PRIMARY KEY,
    total_sessions       INT               NOT NULL DEFAULT 0,
    current_streak       INT               NOT NULL DEFAULT 0,
    best_score           INT               NOT NULL DEFAULT 0,
    avg_filler_reduction DOUBLE PRECISION  NOT NULL DEFAULT 0,
    avg_pace_control     DOUBLE PRECISION  NOT NULL DEFAULT 0,
    weekly_goal          INT               NOT NULL DEFAULT 0,
    weekly_completed     INT               NOT NULL DEFAULT 0,
    last_session_at      TIMESTAMPTZ,
    updated_at           TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS achievements (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    type        TEXT         NOT NULL,
    title       TEXT         NOT NULL DEFAULT '',
    description TEXT         NOT NULL DEFAULT '',
    icon        TEXT         NOT NULL DEFAULT '',
    unlocked_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (user_id, type)
);
CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements (user_id);
`

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it; tests substitute a mock.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a [Store] backed by PostgreSQL with pgvector for
// similar-session recall. The analysis aggregate is serialised as JSONB.
type Postgres struct {
	db   DB
	pool *pgxpool.Pool // nil when constructed via NewPostgresWithDB
	dims int
}

// Compile-time interface check.
var _ Store = (*Postgres)(nil)

// NewPostgres connects to the database at dsn, registers pgvector types on
// every connection, verifies connectivity, and runs the schema migration.
//
// embeddingDimensions must match the configured embedding model (e.g. 1536
// for OpenAI text-embedding-3-small).
func NewPostgres(ctx context.Context, dsn string, embeddingDimensions int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Postgres{db: pool, pool: pool, dims: embeddingDimensions}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithDB creates a [Postgres] over an existing connection or mock.
// The caller is responsible for running [Postgres.Migrate] when needed.
func NewPostgresWithDB(db DB, embeddingDimensions int) *Postgres {
	return &Postgres{db: db, dims: embeddingDimensions}
}

// Migrate executes the schema DDL, creating tables and indexes if they do
// not already exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(schemaTemplate, s.dims)); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateSession implements [SessionStore.CreateSession].
func (s *Postgres) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	analysisJSON, err := json.Marshal(session.Analysis)
	if err != nil {
		return fmt.Errorf("store: marshal analysis: %w", err)
	}

	var embedding *pgvector.Vector
	if len(session.Embedding) > 0 {
		v := pgvector.NewVector(session.Embedding)
		embedding = &v
	}

	const query = `
		INSERT INTO sessions (
			id, user_id, duration_ms, audio_uri, practice_mode,
			transcript, analysis, score, embedding, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, COALESCE($10, now()))
		RETURNING created_at`

	var createdAt *time.Time
	if !session.CreatedAt.IsZero() {
		createdAt = &session.CreatedAt
	}

	err = s.db.QueryRow(ctx, query,
		session.ID, session.UserID, session.DurationMs, session.AudioURI, session.PracticeMode,
		session.Transcript, analysisJSON, session.Score, embedding, createdAt,
	).Scan(&session.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: session %q: %w", session.ID, ErrDuplicate)
		}
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, duration_ms, audio_uri, practice_mode, transcript, analysis, score, embedding, created_at`

// GetUserSessions implements [SessionStore.GetUserSessions].
func (s *Postgres) GetUserSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get user sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// SimilarSessions implements [SessionStore.SimilarSessions]. Results are
// ordered by ascending cosine distance (most similar first).
func (s *Postgres) SimilarSessions(ctx context.Context, userID string, embedding []float32, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := s.db.Query(ctx, query, pgvector.NewVector(embedding), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: similar sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows pgx.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		var (
			sess         Session
			analysisJSON []byte
			embedding    *pgvector.Vector
		)
		err := rows.Scan(
			&sess.ID, &sess.UserID, &sess.DurationMs, &sess.AudioURI, &sess.PracticeMode,
			&sess.Transcript, &analysisJSON, &sess.Score, &embedding, &sess.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		if err := json.Unmarshal(analysisJSON, &sess.Analysis); err != nil {
			return nil, fmt.Errorf("store: unmarshal analysis: %w", err)
		}
		if embedding != nil {
			sess.Embedding = embedding.Slice()
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate sessions: %w", err)
	}
	return sessions, nil
}

// InitUserProgress implements [ProgressStore.InitUserProgress].
func (s *Postgres) InitUserProgress(ctx context.Context, userID string, weeklyGoal int) error {
	const query = `INSERT INTO user_progress (user_id, weekly_goal) VALUES ($1, $2)`
	if _, err := s.db.Exec(ctx, query, userID, weeklyGoal); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: progress for user %q: %w", userID, ErrDuplicate)
		}
		return fmt.Errorf("store: init user progress: %w", err)
	}
	return nil
}

// GetUserProgress implements [ProgressStore.GetUserProgress].
func (s *Postgres) GetUserProgress(ctx context.Context, userID string) (*UserProgress, error) {
	const query = `
		SELECT user_id, total_sessions, current_streak, best_score,
		       avg_filler_reduction, avg_pace_control, weekly_goal,
		       weekly_completed, last_session_at, updated_at
		FROM user_progress WHERE user_id = $1`

	var (
		p             UserProgress
		lastSessionAt *time.Time
	)
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.TotalSessions, &p.CurrentStreak, &p.BestScore,
		&p.AvgFillerReduction, &p.AvgPaceControl, &p.WeeklyGoal,
		&p.WeeklyCompleted, &lastSessionAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: progress for user %q: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get user progress: %w", err)
	}
	if lastSessionAt != nil {
		p.LastSessionAt = *lastSessionAt
	}
	return &p, nil
}

// UpdateUserProgress implements [ProgressStore.UpdateUserProgress]. All set
// fields plus updated_at are written in a single UPDATE statement.
func (s *Postgres) UpdateUserProgress(ctx context.Context, userID string, update ProgressUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("store: invalid progress update: %w", err)
	}

	args := []any{userID} // $1 = user_id
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	assignments := []string{"updated_at = now()"}
	if update.TotalSessions != nil {
		assignments = append(assignments, "total_sessions = "+next(*update.TotalSessions))
	}
	if update.CurrentStreak != nil {
		assignments = append(assignments, "current_streak = "+next(*update.CurrentStreak))
	}
	if update.BestScore != nil {
		assignments = append(assignments, "best_score = "+next(*update.BestScore))
	}
	if update.AvgFillerReduction != nil {
		assignments = append(assignments, "avg_filler_reduction = "+next(*update.AvgFillerReduction))
	}
	if update.AvgPaceControl != nil {
		assignments = append(assignments, "avg_pace_control = "+next(*update.AvgPaceControl))
	}
	if update.WeeklyCompleted != nil {
		assignments = append(assignments, "weekly_completed = "+next(*update.WeeklyCompleted))
	}
	if update.LastSessionAt != nil {
		assignments = append(assignments, "last_session_at = "+next(*update.LastSessionAt))
	}

	query := "UPDATE user_progress SET " + strings.Join(assignments, ", ") + " WHERE user_id = $1"
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: update user progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: progress for user %q: %w", userID, ErrNotFound)
	}
	return nil
}

// GetUserAchievements implements [AchievementStore.GetUserAchievements].
func (s *Postgres) GetUserAchievements(ctx context.Context, userID string) ([]Achievement, error) {
	const query = `
		SELECT id, user_id, type, title, description, icon, unlocked_at
		FROM achievements WHERE user_id = $1 ORDER BY unlocked_at ASC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: get user achievements: %w", err)
	}
	defer rows.Close()

	var achievements []Achievement
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Description, &a.Icon, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("store: scan achievement: %w", err)
		}
		achievements = append(achievements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate achievements: %w", err)
	}
	return achievements, nil
}

// CreateAchievement implements [AchievementStore.CreateAchievement].
func (s *Postgres) CreateAchievement(ctx context.Context, a *Achievement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO achievements (id, user_id, type, title, description, icon, unlocked_at)
		VALUES ($1,$2,$3,$4,$5,$6, COALESCE($7, now()))
		RETURNING unlocked_at`

	var unlockedAt *time.Time
	if !a.UnlockedAt.IsZero() {
		unlockedAt = &a.UnlockedAt
	}

	err := s.db.QueryRow(ctx, query,
		a.ID, a.UserID, a.Type, a.Title, a.Description, a.Icon, unlockedAt,
	).Scan(&a.UnlockedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: achievement %s/%s: %w", a.UserID, a.Type, ErrDuplicate)
		}
		return fmt.Errorf("store: create achievement: %w", err)
	}
	return nil
}

// Ping implements [Store.Ping].
func (s *Postgres) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close implements [Store.Close].
func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
