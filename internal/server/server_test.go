package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orato-app/orato/internal/achievement"
	"github.com/orato-app/orato/internal/analyzer"
	"github.com/orato-app/orato/internal/coach"
	"github.com/orato-app/orato/internal/health"
	"github.com/orato-app/orato/internal/progress"
	"github.com/orato-app/orato/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.MemStore) {
	t.Helper()

	ms := store.NewMemStore()
	c := coach.New(ms, analyzer.NewCascade(nil), progress.NewTracker(time.UTC), achievement.NewEngine())
	h := health.New(health.StoreChecker(ms))
	return New(":0", c, h, nil), ms
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, srv *Server, userID string) {
	t.Helper()
	rec := doJSON(t, srv, "POST", "/v1/users", registerUserRequest{UserID: userID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register user: status = %d, body = %s", rec.Code, rec.Body)
	}
}

// ── user registration ────────────────────────────────────────────────────────

func TestRegisterUser(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/v1/users", registerUserRequest{UserID: "user-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusCreated, rec.Body)
	}
}

func TestRegisterUser_Duplicate(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	registerUser(t, srv, "user-1")

	rec := doJSON(t, srv, "POST", "/v1/users", registerUserRequest{UserID: "user-1"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRegisterUser_MissingID(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/v1/users", registerUserRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRegisterUser_MalformedBody(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/v1/users", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// ── session submission ───────────────────────────────────────────────────────

func TestSubmitSession(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	registerUser(t, srv, "user-1")

	rec := doJSON(t, srv, "POST", "/v1/sessions", submitSessionRequest{
		UserID:     "user-1",
		Transcript: "today I want to talk about the speech I am preparing for next month",
		DurationMs: 30000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusCreated, rec.Body)
	}

	var resp submitSessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Session.ID == "" {
		t.Error("session id should be assigned")
	}
	if resp.Session.UserID != "user-1" {
		t.Errorf("session userId = %q, want user-1", resp.Session.UserID)
	}
	if resp.Progress.TotalSessions != 1 {
		t.Errorf("totalSessions = %d, want 1", resp.Progress.TotalSessions)
	}
	if resp.Source != analyzer.SourceFallback {
		t.Errorf("source = %q, want %q", resp.Source, analyzer.SourceFallback)
	}
	if resp.Progress.LastSessionAt == nil {
		t.Error("lastSessionAt should be set after a session")
	}
}

func TestSubmitSession_EmptyTranscript(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	registerUser(t, srv, "user-1")

	rec := doJSON(t, srv, "POST", "/v1/sessions", submitSessionRequest{
		UserID:     "user-1",
		Transcript: "   ",
		DurationMs: 30000,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSubmitSession_InvalidDuration(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	registerUser(t, srv, "user-1")

	rec := doJSON(t, srv, "POST", "/v1/sessions", submitSessionRequest{
		UserID:     "user-1",
		Transcript: "hello everyone",
		DurationMs: 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSubmitSession_UnregisteredUser(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/v1/sessions", submitSessionRequest{
		UserID:     "ghost",
		Transcript: "hello everyone",
		DurationMs: 30000,
	})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestSubmitSession_UnknownField(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/v1/sessions", strings.NewReader(`{"user":"user-1"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// ── reads ────────────────────────────────────────────────────────────────────

func TestGetProgress(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	registerUser(t, srv, "user-1")

	rec := doJSON(t, srv, "GET", "/v1/users/user-1/progress", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body)
	}

	var resp progressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != "user-1" {
		t.Errorf("userId = %q, want user-1", resp.UserID)
	}
	if resp.LastSessionAt != nil {
		t.Error("lastSessionAt should be absent before any session")
	}
}

func TestGetProgress_UnknownUser(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, "GET", "/v1/users/ghost/progress", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetSessions(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	registerUser(t, srv, "user-1")

	for range 3 {
		rec := doJSON(t, srv, "POST", "/v1/sessions", submitSessionRequest{
			UserID:     "user-1",
			Transcript: "practice makes perfect every single day",
			DurationMs: 20000,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit: status = %d, body = %s", rec.Code, rec.Body)
		}
	}

	rec := doJSON(t, srv, "GET", "/v1/users/user-1/sessions?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp []sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("len(sessions) = %d, want 2", len(resp))
	}
}

func TestGetSessions_InvalidLimit(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, "GET", "/v1/users/user-1/sessions?limit=banana", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetSessions_EmptyIsArray(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, "GET", "/v1/users/nobody/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestGetAchievements(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	registerUser(t, srv, "user-1")

	// A five-minute session unlocks time_master.
	rec := doJSON(t, srv, "POST", "/v1/sessions", submitSessionRequest{
		UserID:     "user-1",
		Transcript: "a long and focused practice run",
		DurationMs: 300000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, srv, "GET", "/v1/users/user-1/achievements", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp []achievementResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, a := range resp {
		if a.Type == achievement.TypeTimeMaster {
			found = true
		}
	}
	if !found {
		t.Errorf("achievements should include %s, got %+v", achievement.TypeTimeMaster, resp)
	}
}

// ── infrastructure endpoints ─────────────────────────────────────────────────

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, "GET", path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, "DELETE", "/v1/sessions", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
