package server

import (
	"net/http"
	"time"

	"moodify/feed"
	"moodify/pkg/moodify"
	"moodify/stats"
)

// recentAuthorsLimit caps the author list in the stats response.
const recentAuthorsLimit = 8

type moodRequest struct {
	Mood moodify.Mood `json:"mood"`
}

type statsResponse struct {
	stats.Summary

	Reactions     int      `json:"reactions"`
	RecentAuthors []string `json:"recentAuthors"`
}

func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, moodRequest{Mood: s.journal.Mood(r.Context())})
}

func (s *Server) handleSetMood(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.journal.SetMood(r.Context(), req.Mood); err != nil {
		s.fail(w, r, err)
		return
	}
	s.feed.SetMood(req.Mood)
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := s.journal.Profile(r.Context())
	if !ok {
		s.writeError(w, http.StatusNotFound, "no profile set")
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var req moodify.User
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.journal.SaveProfile(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.feed.SetUser(u)
	s.writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCapsules(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.journal.Capsules(r.Context()))
}

func (s *Server) handleSeal(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.journal.Seal(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	posts := s.feed.Snapshot(feed.FilterAll).Posts

	resp := statsResponse{
		Summary:       stats.Summarize(s.journal.History(ctx), posts, time.Now()),
		RecentAuthors: stats.RecentAuthors(posts, recentAuthorsLimit),
	}
	if u, ok := s.journal.Profile(ctx); ok {
		resp.Reactions = stats.ReactionsFor(posts, u.Name)
	}
	if resp.RecentAuthors == nil {
		resp.RecentAuthors = []string{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
