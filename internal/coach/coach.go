// Package coach runs the session-submission pipeline: validate the input,
// analyze the transcript, persist the session, update the user's progress,
// and evaluate achievement unlocks. One pipeline run per submission,
// serialized per user.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/orato-app/orato/internal/achievement"
	"github.com/orato-app/orato/internal/analyzer"
	"github.com/orato-app/orato/internal/observe"
	"github.com/orato-app/orato/internal/progress"
	"github.com/orato-app/orato/internal/store"
	"github.com/orato-app/orato/pkg/provider/embeddings"
)

// ErrProgressMissing is returned when a session is submitted for a user with
// no progress record. Progress is initialized at user registration, so a
// missing record on the write path is a contract violation, not a benign
// miss.
var ErrProgressMissing = errors.New("coach: user progress record missing")

// ErrUnknownUser is returned by read operations for users that were never
// registered.
var ErrUnknownUser = errors.New("coach: unknown user")

// embedTimeout bounds the best-effort transcript embedding call.
const embedTimeout = 10 * time.Second

// recentWindow is how many recent sessions the progress tracker sees.
const recentWindow = 5

// defaultWeeklyGoal seeds new progress records when no goal is configured.
const defaultWeeklyGoal = 5

// Submission is one completed practice session entering the pipeline.
type Submission struct {
	UserID       string
	Transcript   string
	DurationMs   int64
	AudioURI     string
	PracticeMode string
}

// Result is everything one submission produced.
type Result struct {
	Session      *store.Session
	Progress     *store.UserProgress
	Achievements []store.Achievement
	// Source reports which analysis path produced the session's Analysis.
	Source analyzer.Source
}

// Coach owns the submission pipeline and its collaborators.
type Coach struct {
	store      store.Store
	cascade    *analyzer.Cascade
	tracker    *progress.Tracker
	engine     *achievement.Engine
	embedder   embeddings.Provider
	metrics    *observe.Metrics
	weeklyGoal int

	users *keyedMutex
}

// Option configures a [Coach].
type Option func(*Coach)

// WithEmbedder enables transcript embedding and similar-session recall.
func WithEmbedder(p embeddings.Provider) Option {
	return func(c *Coach) { c.embedder = p }
}

// WithMetrics wires a custom [observe.Metrics] instance (tests).
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coach) { c.metrics = m }
}

// WithWeeklyGoal sets the weekly session goal seeded into new progress
// records.
func WithWeeklyGoal(goal int) Option {
	return func(c *Coach) { c.weeklyGoal = goal }
}

// New creates a Coach. cascade, tracker, and engine must be non-nil; s is
// the persistence boundary.
func New(s store.Store, cascade *analyzer.Cascade, tracker *progress.Tracker, engine *achievement.Engine, opts ...Option) *Coach {
	c := &Coach{
		store:      s,
		cascade:    cascade,
		tracker:    tracker,
		engine:     engine,
		metrics:    observe.DefaultMetrics(),
		weeklyGoal: defaultWeeklyGoal,
		users:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterUser creates the zeroed progress record for a new user. Returns
// [store.ErrDuplicate] when the user is already registered.
func (c *Coach) RegisterUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("coach: register: %w", errEmptyUserID)
	}
	return c.store.InitUserProgress(ctx, userID, c.weeklyGoal)
}

var errEmptyUserID = errors.New("user id must not be empty")

// Submit runs the full pipeline for one completed session.
//
// Input validation failures are returned to the caller. Once analysis
// starts, the submission always reaches a terminal persisted state: the
// persistence steps run on a context detached from client cancellation so an
// aborted request never leaves a session without its progress update.
// Analysis-path failures never surface as errors; the deterministic result
// is used instead.
func (c *Coach) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if sub.UserID == "" {
		return nil, fmt.Errorf("coach: submit: %w", errEmptyUserID)
	}
	durationSeconds := float64(sub.DurationMs) / 1000
	if err := analyzer.ValidateInput(sub.Transcript, durationSeconds); err != nil {
		return nil, fmt.Errorf("coach: submit: %w", err)
	}

	// Same-user submissions serialize their read-modify-write of progress
	// and achievements; different users run concurrently.
	unlock := c.users.lock(sub.UserID)
	defer unlock()

	c.metrics.ActiveSubmissions.Add(ctx, 1)
	defer c.metrics.ActiveSubmissions.Add(ctx, -1)

	start := time.Now()
	analysis, source, err := c.cascade.Analyze(ctx, sub.Transcript, durationSeconds)
	if err != nil {
		// Only invalid input reaches here, and that was checked above.
		return nil, fmt.Errorf("coach: submit: %w", err)
	}
	c.metrics.RecordAnalysis(ctx, string(source), time.Since(start).Seconds())

	// From here on the pipeline must finish even if the client goes away.
	persistCtx := context.WithoutCancel(ctx)

	embedding := c.embedTranscript(persistCtx, sub.Transcript)
	if len(embedding) > 0 {
		c.addSimilarSessionRecommendation(persistCtx, sub.UserID, embedding, analysis)
	}

	session := &store.Session{
		UserID:       sub.UserID,
		DurationMs:   sub.DurationMs,
		AudioURI:     sub.AudioURI,
		PracticeMode: sub.PracticeMode,
		Transcript:   sub.Transcript,
		Analysis:     *analysis,
		Score:        analysis.Score,
		Embedding:    embedding,
	}
	if err := c.store.CreateSession(persistCtx, session); err != nil {
		return nil, fmt.Errorf("coach: submit: %w", err)
	}

	prior, err := c.store.GetUserProgress(persistCtx, sub.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("coach: submit user %q: %w", sub.UserID, ErrProgressMissing)
		}
		return nil, fmt.Errorf("coach: submit: %w", err)
	}

	recent, err := c.store.GetUserSessions(persistCtx, sub.UserID, recentWindow)
	if err != nil {
		return nil, fmt.Errorf("coach: submit: %w", err)
	}

	update := c.tracker.Next(prior, session, recent)
	if err := c.store.UpdateUserProgress(persistCtx, sub.UserID, update); err != nil {
		return nil, fmt.Errorf("coach: submit: %w", err)
	}

	// Re-read so the returned record matches what was stored, including the
	// refreshed UpdatedAt.
	updated, err := c.store.GetUserProgress(persistCtx, sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("coach: submit: %w", err)
	}

	unlockedNow, err := c.unlockAchievements(persistCtx, session, updated)
	if err != nil {
		return nil, fmt.Errorf("coach: submit: %w", err)
	}

	c.metrics.RecordSessionProcessed(ctx, string(source))
	slog.InfoContext(ctx, "session processed",
		slog.String("user_id", sub.UserID),
		slog.String("session_id", session.ID),
		slog.String("source", string(source)),
		slog.Int("score", session.Score),
		slog.Int("streak", updated.CurrentStreak),
	)

	return &Result{
		Session:      session,
		Progress:     updated,
		Achievements: unlockedNow,
		Source:       source,
	}, nil
}

// Progress returns the user's current progress record.
func (c *Coach) Progress(ctx context.Context, userID string) (*store.UserProgress, error) {
	p, err := c.store.GetUserProgress(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("coach: progress for %q: %w", userID, ErrUnknownUser)
		}
		return nil, fmt.Errorf("coach: progress: %w", err)
	}
	return p, nil
}

// Sessions returns up to limit of the user's most recent sessions, newest
// first.
func (c *Coach) Sessions(ctx context.Context, userID string, limit int) ([]store.Session, error) {
	sessions, err := c.store.GetUserSessions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("coach: sessions: %w", err)
	}
	return sessions, nil
}

// Achievements returns all achievements the user has unlocked, oldest first.
func (c *Coach) Achievements(ctx context.Context, userID string) ([]store.Achievement, error) {
	achievements, err := c.store.GetUserAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("coach: achievements: %w", err)
	}
	return achievements, nil
}

// embedTranscript computes the transcript embedding when an embedder is
// configured. Best effort: any failure is logged and the session is stored
// without a vector.
func (c *Coach) embedTranscript(ctx context.Context, transcript string) []float32 {
	if c.embedder == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	start := time.Now()
	vec, err := c.embedder.Embed(ctx, transcript)
	c.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordProviderError(ctx, c.embedder.ModelID(), "embeddings")
		slog.WarnContext(ctx, "transcript embedding failed, storing session without vector",
			slog.String("model", c.embedder.ModelID()),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return vec
}

// addSimilarSessionRecommendation appends a practice-variety recommendation
// pointing at the user's most similar past session, when one exists. Purely
// advisory; lookup failures are logged and ignored.
func (c *Coach) addSimilarSessionRecommendation(ctx context.Context, userID string, embedding []float32, analysis *analyzer.Analysis) {
	similar, err := c.store.SimilarSessions(ctx, userID, embedding, 1)
	if err != nil {
		slog.WarnContext(ctx, "similar-session lookup failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(similar) == 0 {
		return
	}
	analysis.Recommendations = append(analysis.Recommendations, analyzer.Recommendation{
		ID:          "practice-variety",
		Text:        "Try varying your practice material",
		Description: fmt.Sprintf("This session closely resembles an earlier one (session %s). Practicing different topics builds range.", similar[0].ID),
	})
}

// unlockAchievements evaluates the rule table and persists any new unlocks.
// A storage-level duplicate is treated as a benign no-op: the pre-check
// against unlocked types is the real guard, uniqueness at the store is just
// a backstop.
func (c *Coach) unlockAchievements(ctx context.Context, session *store.Session, p *store.UserProgress) ([]store.Achievement, error) {
	existing, err := c.store.GetUserAchievements(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	candidates := c.engine.Evaluate(session.UserID, achievement.Input{
		CurrentStreak: p.CurrentStreak,
		Score:         session.Score,
		DurationMs:    session.DurationMs,
	}, achievement.UnlockedTypes(existing))

	var unlocked []store.Achievement
	for i := range candidates {
		a := candidates[i]
		if err := c.store.CreateAchievement(ctx, &a); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				slog.DebugContext(ctx, "achievement already unlocked",
					slog.String("user_id", session.UserID),
					slog.String("type", a.Type),
				)
				continue
			}
			return nil, err
		}
		c.metrics.RecordAchievementUnlocked(ctx, a.Type)
		unlocked = append(unlocked, a)
	}
	return unlocked, nil
}
