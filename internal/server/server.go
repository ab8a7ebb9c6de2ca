// Package server exposes the coaching engine over HTTP.
//
// The handlers are deliberately thin: they validate request shape, delegate
// to [coach.Coach], and translate its errors to status codes. All domain
// rules live behind that boundary.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/orato-app/orato/internal/coach"
	"github.com/orato-app/orato/internal/health"
	"github.com/orato-app/orato/internal/observe"
)

const shutdownTimeout = 15 * time.Second

// Server is the HTTP front end for the coaching engine.
type Server struct {
	coach   *coach.Coach
	httpSrv *http.Server
}

// New builds a server listening on addr. The health handler and metrics are
// optional; nil disables the corresponding endpoints or instrumentation.
func New(addr string, c *coach.Coach, h *health.Handler, m *observe.Metrics) *Server {
	s := &Server{coach: c}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/users", s.handleRegisterUser)
	mux.HandleFunc("POST /v1/sessions", s.handleSubmitSession)
	mux.HandleFunc("GET /v1/users/{id}/progress", s.handleGetProgress)
	mux.HandleFunc("GET /v1/users/{id}/sessions", s.handleGetSessions)
	mux.HandleFunc("GET /v1/users/{id}/achievements", s.handleGetAchievements)
	mux.Handle("GET /metrics", promhttp.Handler())
	if h != nil {
		h.Register(mux)
	}

	var handler http.Handler = mux
	if m != nil {
		handler = observe.Middleware(m)(handler)
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wired HTTP handler. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// Returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("http server draining")
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
