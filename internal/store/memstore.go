package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. It is
// suitable for tests and single-process dev runs; nothing survives a restart.
type MemStore struct {
	mu           sync.RWMutex
	sessions     []Session // insertion order
	progress     map[string]UserProgress
	achievements map[string][]Achievement

	// now is the clock used for assigned timestamps; replaceable in tests.
	now func() time.Time
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		progress:     make(map[string]UserProgress),
		achievements: make(map[string][]Achievement),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession implements [SessionStore.CreateSession].
func (s *MemStore) CreateSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	stored := *session
	stored.Embedding = append([]float32(nil), session.Embedding...)
	s.sessions = append(s.sessions, stored)
	return nil
}

// GetUserSessions implements [SessionStore.GetUserSessions].
func (s *MemStore) GetUserSessions(_ context.Context, userID string, limit int) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Session
	// Walk newest-insertion-first so equal timestamps stay stable.
	for i := len(s.sessions) - 1; i >= 0; i-- {
		if s.sessions[i].UserID == userID {
			result = append(result, s.sessions[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SimilarSessions implements [SessionStore.SimilarSessions].
func (s *MemStore) SimilarSessions(_ context.Context, userID string, embedding []float32, limit int) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		session  Session
		distance float64
	}
	var candidates []scored
	for _, sess := range s.sessions {
		if sess.UserID != userID || len(sess.Embedding) == 0 || len(sess.Embedding) != len(embedding) {
			continue
		}
		candidates = append(candidates, scored{sess, cosineDistance(embedding, sess.Embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	result := make([]Session, len(candidates))
	for i, c := range candidates {
		result[i] = c.session
	}
	return result, nil
}

// InitUserProgress implements [ProgressStore.InitUserProgress].
func (s *MemStore) InitUserProgress(_ context.Context, userID string, weeklyGoal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.progress[userID]; exists {
		return ErrDuplicate
	}
	s.progress[userID] = UserProgress{
		UserID:     userID,
		WeeklyGoal: weeklyGoal,
		UpdatedAt:  s.now(),
	}
	return nil
}

// GetUserProgress implements [ProgressStore.GetUserProgress].
func (s *MemStore) GetUserProgress(_ context.Context, userID string) (*UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// UpdateUserProgress implements [ProgressStore.UpdateUserProgress].
func (s *MemStore) UpdateUserProgress(_ context.Context, userID string, update ProgressUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.progress[userID]
	if !ok {
		return ErrNotFound
	}

	if update.TotalSessions != nil {
		p.TotalSessions = *update.TotalSessions
	}
	if update.CurrentStreak != nil {
		p.CurrentStreak = *update.CurrentStreak
	}
	if update.BestScore != nil {
		p.BestScore = *update.BestScore
	}
	if update.AvgFillerReduction != nil {
		p.AvgFillerReduction = *update.AvgFillerReduction
	}
	if update.AvgPaceControl != nil {
		p.AvgPaceControl = *update.AvgPaceControl
	}
	if update.WeeklyCompleted != nil {
		p.WeeklyCompleted = *update.WeeklyCompleted
	}
	if update.LastSessionAt != nil {
		p.LastSessionAt = *update.LastSessionAt
	}
	p.UpdatedAt = s.now()

	s.progress[userID] = p
	return nil
}

// GetUserAchievements implements [AchievementStore.GetUserAchievements].
func (s *MemStore) GetUserAchievements(_ context.Context, userID string) ([]Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Achievement(nil), s.achievements[userID]...), nil
}

// CreateAchievement implements [AchievementStore.CreateAchievement].
func (s *MemStore) CreateAchievement(_ context.Context, a *Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.achievements[a.UserID] {
		if existing.Type == a.Type {
			return ErrDuplicate
		}
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = s.now()
	}
	s.achievements[a.UserID] = append(s.achievements[a.UserID], *a)
	return nil
}

// Ping implements [Store.Ping]. An in-memory store is always reachable.
func (s *MemStore) Ping(context.Context) error { return nil }

// Close implements [Store.Close].
func (s *MemStore) Close() {}

// cosineDistance returns 1 - cosine similarity; 1.0 for degenerate vectors
// so they rank last.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
