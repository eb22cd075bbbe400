// Package server exposes a feed session and the local journal as a JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"moodify/feed"
	"moodify/journal"
	"moodify/pkg/moodify"
)

// Default rate for mutating requests, per client IP.
const (
	DefaultRate  = rate.Limit(2)
	DefaultBurst = 10
)

const shutdownTimeout = 10 * time.Second

// Feed is the live session the API drives.
type Feed interface {
	Snapshot(f feed.Filter) feed.Snapshot
	Post(id int64) (moodify.Post, bool)
	Publish(ctx context.Context, text string) (moodify.Post, error)
	React(ctx context.Context, id int64, emoji string) (moodify.Post, error)
	Reply(ctx context.Context, id int64, text string) (moodify.Post, error)
	AcceptPending() int
	Tick(ctx context.Context)
	SetUser(u moodify.User)
	SetMood(m moodify.Mood)
}

// Journal holds local profile, mood and capsule data.
type Journal interface {
	Mood(ctx context.Context) moodify.Mood
	SetMood(ctx context.Context, m moodify.Mood) error
	History(ctx context.Context) []moodify.HistoryEntry
	Profile(ctx context.Context) (moodify.User, bool)
	SaveProfile(ctx context.Context, u moodify.User) (moodify.User, error)
	Seal(ctx context.Context, text string) (moodify.Capsule, error)
	Capsules(ctx context.Context) []journal.Capsule
}

// Server handles HTTP requests.
type Server struct {
	feed    Feed
	journal Journal
	limiter *ipLimiter
	logger  *slog.Logger
	shared  bool
}

// Config holds server configuration.
type Config struct {
	Feed    Feed
	Journal Journal
	Logger  *slog.Logger
	Rate    rate.Limit // zero uses DefaultRate
	Burst   int        // zero uses DefaultBurst
	Shared  bool       // whether a shared document store is configured
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	r, burst := cfg.Rate, cfg.Burst
	if r == 0 {
		r = DefaultRate
	}
	if burst == 0 {
		burst = DefaultBurst
	}
	return &Server{
		feed:    cfg.Feed,
		journal: cfg.Journal,
		limiter: newIPLimiter(r, burst),
		logger:  cfg.Logger,
		shared:  cfg.Shared,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /pollz", s.limit(s.handlePoll))

	mux.HandleFunc("GET /feed", s.handleFeed)
	mux.HandleFunc("POST /feed/posts", s.limit(s.handlePublish))
	mux.HandleFunc("POST /feed/posts/{id}/reactions", s.limit(s.handleReact))
	mux.HandleFunc("POST /feed/posts/{id}/replies", s.limit(s.handleReply))
	mux.HandleFunc("POST /feed/posts/{id}/analysis", s.handleAnalysis)
	mux.HandleFunc("POST /feed/pending/accept", s.handleAcceptPending)

	mux.HandleFunc("GET /mood", s.handleMood)
	mux.HandleFunc("PUT /mood", s.limit(s.handleSetMood))
	mux.HandleFunc("GET /profile", s.handleProfile)
	mux.HandleFunc("PUT /profile", s.limit(s.handleSaveProfile))
	mux.HandleFunc("GET /capsules", s.handleCapsules)
	mux.HandleFunc("POST /capsules", s.limit(s.handleSeal))
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

// ListenAndServe serves the API on port until ctx is cancelled, then drains
// open connections.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "shared": s.shared})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Poll endpoint triggered")
	s.feed.Tick(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
