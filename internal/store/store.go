// Package store defines the persistence boundary for sessions, per-user
// progress, and achievements, together with a PostgreSQL implementation
// (pgx + pgvector) and an in-memory implementation for tests and dev runs.
//
// The backend is chosen explicitly at construction time and injected into the
// pipeline; the engine itself never inspects the environment to decide where
// data lives.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orato-app/orato/internal/analyzer"
)

// Sentinel errors shared by all Store implementations.
var (
	// ErrNotFound is returned when the requested record does not exist.
	// For progress reads this signals a contract violation upstream:
	// progress is initialised at user creation and must exist before any
	// session is submitted.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a uniqueness constraint is violated,
	// e.g. a second achievement of the same type for one user. Callers
	// treat this as a benign no-op for achievements.
	ErrDuplicate = errors.New("store: duplicate")
)

// Session is one completed practice session. Created exactly once when a
// transcript is submitted and never mutated afterwards.
type Session struct {
	ID           string
	UserID       string
	DurationMs   int64
	AudioURI     string
	PracticeMode string
	Transcript   string
	Analysis     analyzer.Analysis
	Score        int

	// Embedding is the transcript embedding used for similar-session
	// recall. Nil when no embeddings provider was configured at submission
	// time.
	Embedding []float32

	CreatedAt time.Time
}

// UserProgress is the one-per-user longitudinal progress record. It is
// created zeroed when the user is created and mutated only by the progress
// tracker as a side effect of session creation.
type UserProgress struct {
	UserID             string
	TotalSessions      int
	CurrentStreak      int
	BestScore          int
	AvgFillerReduction float64
	AvgPaceControl     float64
	WeeklyGoal         int
	WeeklyCompleted    int

	// LastSessionAt is zero when the user has never completed a session.
	LastSessionAt time.Time

	UpdatedAt time.Time
}

// Achievement is a one-time, per-user, per-type unlockable milestone.
// Append-only; a given (UserID, Type) pair exists at most once.
type Achievement struct {
	ID          string
	UserID      string
	Type        string
	Title       string
	Description string
	Icon        string
	UnlockedAt  time.Time
}

// ProgressUpdate is the strictly-typed partial update applied to a
// [UserProgress] record. Nil fields are left untouched; all set fields are
// applied as one atomic write.
type ProgressUpdate struct {
	TotalSessions      *int
	CurrentStreak      *int
	BestScore          *int
	AvgFillerReduction *float64
	AvgPaceControl     *float64
	WeeklyCompleted    *int
	LastSessionAt      *time.Time
}

// Validate checks every set field for range violations before the update is
// merged. It returns a joined error listing all failures.
func (u ProgressUpdate) Validate() error {
	var errs []error
	checkNonNegativeInt := func(name string, v *int) {
		if v != nil && *v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, *v))
		}
	}
	checkNonNegativeInt("totalSessions", u.TotalSessions)
	checkNonNegativeInt("currentStreak", u.CurrentStreak)
	checkNonNegativeInt("weeklyCompleted", u.WeeklyCompleted)
	if u.BestScore != nil && (*u.BestScore < 0 || *u.BestScore > 100) {
		errs = append(errs, fmt.Errorf("bestScore must be in [0, 100], got %d", *u.BestScore))
	}
	checkRange := func(name string, v *float64) {
		if v != nil && (*v < 0 || *v > 100) {
			errs = append(errs, fmt.Errorf("%s must be in [0, 100], got %v", name, *v))
		}
	}
	checkRange("avgFillerReduction", u.AvgFillerReduction)
	checkRange("avgPaceControl", u.AvgPaceControl)
	return errors.Join(errs...)
}

// SessionStore persists completed sessions.
type SessionStore interface {
	// CreateSession persists s. When s.ID is empty a new ID is assigned;
	// when s.CreatedAt is zero the current time is assigned. The stored
	// values are written back into s.
	CreateSession(ctx context.Context, s *Session) error

	// GetUserSessions returns up to limit of the user's most recent
	// sessions, newest first. A limit <= 0 means no limit.
	GetUserSessions(ctx context.Context, userID string, limit int) ([]Session, error)

	// SimilarSessions returns up to limit of the user's stored sessions
	// ranked by ascending cosine distance to embedding, excluding sessions
	// without a stored embedding.
	SimilarSessions(ctx context.Context, userID string, embedding []float32, limit int) ([]Session, error)
}

// ProgressStore persists per-user progress records.
type ProgressStore interface {
	// InitUserProgress creates the zeroed progress record for a new user
	// with the given weekly goal. Returns [ErrDuplicate] if one exists.
	InitUserProgress(ctx context.Context, userID string, weeklyGoal int) error

	// GetUserProgress returns the user's progress record, or [ErrNotFound]
	// when the user has no record.
	GetUserProgress(ctx context.Context, userID string) (*UserProgress, error)

	// UpdateUserProgress validates update and applies it atomically.
	// Returns [ErrNotFound] when the user has no progress record — partial
	// creation on the write path is a contract violation, not a feature.
	UpdateUserProgress(ctx context.Context, userID string, update ProgressUpdate) error
}

// AchievementStore persists unlocked achievements.
type AchievementStore interface {
	// GetUserAchievements returns all achievements unlocked by the user,
	// oldest first.
	GetUserAchievements(ctx context.Context, userID string) ([]Achievement, error)

	// CreateAchievement persists a newly unlocked achievement. Returns
	// [ErrDuplicate] when the (UserID, Type) pair already exists.
	CreateAchievement(ctx context.Context, a *Achievement) error
}

// Store is the full persistence boundary used by the pipeline.
type Store interface {
	SessionStore
	ProgressStore
	AchievementStore

	// Ping reports whether the backend is reachable. Used by readiness
	// checks.
	Ping(ctx context.Context) error

	// Close releases held resources. Safe to call more than once.
	Close()
}
