package server

import (
	"net/http"

	"moodify/feed"
	"moodify/pkg/moodify"
	"moodify/stats"
)

type feedResponse struct {
	State   feed.State     `json:"state"`
	Posts   []moodify.Post `json:"posts"`
	Pending int            `json:"pending"`
	Online  int            `json:"online"`
}

type textRequest struct {
	Text string `json:"text"`
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	filter, err := feed.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap := s.feed.Snapshot(filter)
	s.writeJSON(w, http.StatusOK, feedResponse{
		State:   snap.State,
		Posts:   snap.Posts,
		Pending: len(snap.Pending),
		Online:  snap.Online,
	})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	post, err := s.feed.Publish(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req reactRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	post, err := s.feed.React(r.Context(), id, req.Emoji)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	post, err := s.feed.Reply(r.Context(), id, req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	post, ok := s.feed.Post(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "post not found")
		return
	}
	s.writeJSON(w, http.StatusOK, stats.Analyze(post.Text))
}

func (s *Server) handleAcceptPending(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"accepted": s.feed.AcceptPending()})
}
