package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/orato-app/orato/internal/analyzer"
	"github.com/orato-app/orato/internal/coach"
	"github.com/orato-app/orato/internal/observe"
	"github.com/orato-app/orato/internal/store"
)

// maxRequestBody caps session submissions. Transcripts are text; 1 MiB is
// roughly two hours of continuous speech.
const maxRequestBody = 1 << 20

// ── request / response shapes ────────────────────────────────────────────────

type registerUserRequest struct {
	UserID string `json:"userId"`
}

type submitSessionRequest struct {
	UserID       string `json:"userId"`
	Transcript   string `json:"transcript"`
	DurationMs   int64  `json:"durationMs"`
	AudioURI     string `json:"audioUri"`
	PracticeMode string `json:"practiceMode"`
}

type sessionResponse struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	DurationMs   int64             `json:"durationMs"`
	AudioURI     string            `json:"audioUri,omitempty"`
	PracticeMode string            `json:"practiceMode,omitempty"`
	Transcript   string            `json:"transcript"`
	Analysis     analyzer.Analysis `json:"analysis"`
	Score        int               `json:"score"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type progressResponse struct {
	UserID             string     `json:"userId"`
	TotalSessions      int        `json:"totalSessions"`
	CurrentStreak      int        `json:"currentStreak"`
	BestScore          int        `json:"bestScore"`
	AvgFillerReduction float64    `json:"avgFillerReduction"`
	AvgPaceControl     float64    `json:"avgPaceControl"`
	WeeklyGoal         int        `json:"weeklyGoal"`
	WeeklyCompleted    int        `json:"weeklyCompleted"`
	LastSessionAt      *time.Time `json:"lastSessionAt,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type achievementResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

type submitSessionResponse struct {
	Session      sessionResponse       `json:"session"`
	Progress     progressResponse      `json:"progress"`
	Achievements []achievementResponse `json:"achievements"`
	Source       analyzer.Source       `json:"source"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ── handlers ─────────────────────────────────────────────────────────────────

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := s.coach.RegisterUser(r.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "user already registered")
			return
		}
		s.internalError(w, r, "register user", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"userId": req.UserID})
}

func (s *Server) handleSubmitSession(w http.ResponseWriter, r *http.Request) {
	var req submitSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	result, err := s.coach.Submit(r.Context(), coach.Submission{
		UserID:       req.UserID,
		Transcript:   req.Transcript,
		DurationMs:   req.DurationMs,
		AudioURI:     req.AudioURI,
		PracticeMode: req.PracticeMode,
	})
	if err != nil {
		switch {
		case errors.Is(err, analyzer.ErrEmptyTranscript), errors.Is(err, analyzer.ErrInvalidDuration):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, coach.ErrProgressMissing):
			// The user exists without a progress record: a storage contract
			// violation, not a client mistake.
			s.internalError(w, r, "submit session", err)
		default:
			s.internalError(w, r, "submit session", err)
		}
		return
	}

	resp := submitSessionResponse{
		Session:      toSessionResponse(*result.Session),
		Progress:     toProgressResponse(*result.Progress),
		Achievements: toAchievementResponses(result.Achievements),
		Source:       result.Source,
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.coach.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, coach.ErrUnknownUser) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.internalError(w, r, "get progress", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressResponse(*p))
}

func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := s.coach.Sessions(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.internalError(w, r, "get sessions", err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := s.coach.Achievements(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, "get achievements", err)
		return
	}
	writeJSON(w, http.StatusOK, toAchievementResponses(achievements))
}

// ── mapping ──────────────────────────────────────────────────────────────────

func toSessionResponse(sess store.Session) sessionResponse {
	return sessionResponse{
		ID:           sess.ID,
		UserID:       sess.UserID,
		DurationMs:   sess.DurationMs,
		AudioURI:     sess.AudioURI,
		PracticeMode: sess.PracticeMode,
		Transcript:   sess.Transcript,
		Analysis:     sess.Analysis,
		Score:        sess.Score,
		CreatedAt:    sess.CreatedAt,
	}
}

func toProgressResponse(p store.UserProgress) progressResponse {
	resp := progressResponse{
		UserID:             p.UserID,
		TotalSessions:      p.TotalSessions,
		CurrentStreak:      p.CurrentStreak,
		BestScore:          p.BestScore,
		AvgFillerReduction: p.AvgFillerReduction,
		AvgPaceControl:     p.AvgPaceControl,
		WeeklyGoal:         p.WeeklyGoal,
		WeeklyCompleted:    p.WeeklyCompleted,
		UpdatedAt:          p.UpdatedAt,
	}
	if !p.LastSessionAt.IsZero() {
		t := p.LastSessionAt
		resp.LastSessionAt = &t
	}
	return resp
}

func toAchievementResponses(achievements []store.Achievement) []achievementResponse {
	resp := make([]achievementResponse, 0, len(achievements))
	for _, a := range achievements {
		resp = append(resp, achievementResponse{
			ID:          a.ID,
			UserID:      a.UserID,
			Type:        a.Type,
			Title:       a.Title,
			Description: a.Description,
			Icon:        a.Icon,
			UnlockedAt:  a.UnlockedAt,
		})
	}
	return resp
}

// ── plumbing ─────────────────────────────────────────────────────────────────

// decodeJSON decodes the request body into v. On failure it writes a 400
// response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	observe.Logger(r.Context()).Error("request failed", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}
