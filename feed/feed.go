// Package feed keeps one session's view of the shared post list in step with
// every other session by polling the shared document.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"moodify/pkg/moodify"
	"moodify/sanitize"
)

// PollInterval is how often a running session re-reads the shared posts.
const PollInterval = 5 * time.Second

var (
	ErrEmptyPost      = errors.New("post text is empty")
	ErrEmptyReply     = errors.New("reply text is empty")
	ErrInvalidEmoji   = errors.New("unsupported reaction")
	ErrPostNotFound   = errors.New("post not found")
	ErrNoProfile      = errors.New("no profile set")
	ErrInvalidFilter  = errors.New("unknown filter")
	ErrAlreadyRunning = errors.New("session already polling")
)

// Store reads and writes shared and local values.
type Store interface {
	Get(ctx context.Context, key string, shared bool) (json.RawMessage, bool)
	Set(ctx context.Context, key string, value any, shared bool)
}

// History records the mood a post was published with.
type History interface {
	Record(ctx context.Context, mood moodify.Mood)
}

// State is the lifecycle stage of a session.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// Filter narrows the posts returned by Snapshot.
type Filter string

const (
	FilterAll  Filter = "all"
	FilterMood Filter = "mood" // posts sharing the session's current mood
	FilterMine Filter = "mine" // posts written by the session's user
)

// ParseFilter validates a filter name. Empty means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterMood, FilterMine:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	State   State          `json:"state"`
	Posts   []moodify.Post `json:"posts"`
	Pending []moodify.Post `json:"pending"`
	Online  int            `json:"online"`
}

// Config holds session configuration.
type Config struct {
	Store    Store
	History  History // optional
	Logger   *slog.Logger
	Now      func() time.Time
	User     moodify.User
	Mood     moodify.Mood
	Interval time.Duration
}

// Session is one user's live view of the shared feed.
//
// Writes are optimistic: the local list changes first and the shared write
// is fire-and-forget. Nothing is rolled back if the write is later lost.
type Session struct {
	store    Store
	history  History
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
	running  atomic.Bool

	// writeMu orders mutate-then-write sequences so shared writes leave in
	// the same order the local list changed.
	writeMu sync.Mutex

	mu      sync.Mutex
	state   State
	user    moodify.User
	mood    moodify.Mood
	known   []moodify.Post
	pending []moodify.Post
	online  int
	lastID  int64
	// edits counts local changes to known; a poll whose fetch overlapped
	// one is discarded.
	edits uint64
}

// New creates a session in the loading state.
func New(cfg *Config) *Session {
	s := &Session{
		store:    cfg.Store,
		history:  cfg.History,
		logger:   cfg.Logger,
		now:      cfg.Now,
		interval: cfg.Interval,
		state:    StateLoading,
		user:     cfg.User,
		mood:     cfg.Mood,
		online:   1,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.interval <= 0 {
		s.interval = PollInterval
	}
	if s.mood == "" {
		s.mood = moodify.Happy
	}
	return s
}

// SetUser changes the identity used for new posts and self-detection.
func (s *Session) SetUser(u moodify.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// SetMood changes the mood new posts are tagged with.
func (s *Session) SetMood(m moodify.Mood) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mood = m
}

// Snapshot returns a copy of the session state with posts narrowed by f.
func (s *Session) Snapshot(f Filter) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]moodify.Post, 0, len(s.known))
	for _, p := range s.known {
		switch {
		case f == FilterMood && p.Mood != s.mood:
			continue
		case f == FilterMine && p.Author != s.user.Name:
			continue
		}
		posts = append(posts, p.Clone())
	}

	return Snapshot{
		State:   s.state,
		Posts:   posts,
		Pending: clonePosts(s.pending),
		Online:  s.online,
	}
}

// Post returns the known post with id.
func (s *Session) Post(id int64) (moodify.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.known[i].Clone(), true
	}
	return moodify.Post{}, false
}

// Load reads the shared posts once and marks the session ready.
func (s *Session) Load(ctx context.Context) {
	s.mu.Lock()
	edits := s.edits
	s.mu.Unlock()

	posts, _ := s.fetch(ctx)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edits == edits {
		s.known = posts
	}
	if s.known == nil {
		s.known = []moodify.Post{}
	}
	s.online = Online(s.known, s.user.Name, now)
	s.state = StateReady
	s.logger.Info("Feed loaded", "posts", len(s.known), "online", s.online)
}

// Tick performs one poll. A missing or malformed shared list skips the tick.
// A local Publish, React or Reply that lands while the fetch is in flight
// also skips the tick, so the stale list cannot replace the edit.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	edits := s.edits
	s.mu.Unlock()

	fetched, ok := s.fetch(ctx)
	if !ok {
		s.logger.Debug("Poll skipped, no shared post list")
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edits != edits {
		s.logger.Debug("Poll skipped, local change during fetch", "edits", s.edits-edits)
		return
	}

	res := Merge(s.known, fetched, s.user.Name)
	if !res.Replaced {
		s.logger.Info("Fetched post list is shorter than local, keeping local",
			"local", len(s.known),
			"fetched", len(fetched))
	}
	s.known = res.Posts
	if len(res.Fresh) > 0 {
		s.pending = append(clonePosts(res.Fresh), s.pending...)
		s.logger.Info("New posts detected", "count", len(res.Fresh), "pending", len(s.pending))
	}
	s.online = Online(fetched, s.user.Name, now)
}

// AcceptPending acknowledges pending posts and returns how many there were.
// They are already part of the known list; only the notice is cleared.
func (s *Session) AcceptPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	s.pending = nil
	return n
}

// Publish creates a post, shows it at once and writes the full list.
func (s *Session) Publish(ctx context.Context, text string) (moodify.Post, error) {
	text = sanitize.Truncate(sanitize.Text(text), moodify.MaxTextLen)
	if text == "" {
		return moodify.Post{}, ErrEmptyPost
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.user.Name == "" {
		s.mu.Unlock()
		return moodify.Post{}, ErrNoProfile
	}
	ts := s.now().UnixMilli()
	id := ts
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	post := moodify.Post{
		ID:        id,
		Author:    s.user.Name,
		Avatar:    s.user.Avatar,
		Text:      text,
		Mood:      s.mood,
		TS:        ts,
		Reactions: map[string]int{},
		Replies:   []moodify.Reply{},
	}
	s.known = append([]moodify.Post{post}, s.known...)
	s.edits++
	updated := clonePosts(s.known)
	mood := s.mood
	s.mu.Unlock()

	s.store.Set(ctx, moodify.KeyPosts, updated, true)
	if s.history != nil {
		s.history.Record(ctx, mood)
	}

	s.logger.Info("Post published", "id", post.ID, "author", post.Author, "mood", post.Mood)
	return post.Clone(), nil
}

// React adds one emoji reaction to a post.
func (s *Session) React(ctx context.Context, id int64, emoji string) (moodify.Post, error) {
	emoji = strings.TrimSpace(emoji)
	if !slices.Contains(moodify.Reactions, emoji) {
		return moodify.Post{}, fmt.Errorf("%w: %q", ErrInvalidEmoji, emoji)
	}
	return s.update(ctx, id, func(p *moodify.Post) {
		if p.Reactions == nil {
			p.Reactions = map[string]int{}
		}
		p.Reactions[emoji]++
	})
}

// Reply appends a reply from the session's user to a post.
func (s *Session) Reply(ctx context.Context, id int64, text string) (moodify.Post, error) {
	text = sanitize.Truncate(sanitize.Text(text), moodify.MaxReplyLen)
	if text == "" {
		return moodify.Post{}, ErrEmptyReply
	}

	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if user.Name == "" {
		return moodify.Post{}, ErrNoProfile
	}

	return s.update(ctx, id, func(p *moodify.Post) {
		p.Replies = append(p.Replies, moodify.Reply{Author: user.Name, Avatar: user.Avatar, Text: text})
	})
}

func (s *Session) update(ctx context.Context, id int64, mutate func(*moodify.Post)) (moodify.Post, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return moodify.Post{}, fmt.Errorf("%w: %d", ErrPostNotFound, id)
	}
	p := s.known[i].Clone()
	mutate(&p)
	s.known = slices.Clone(s.known)
	s.known[i] = p
	s.edits++
	updated := clonePosts(s.known)
	s.mu.Unlock()

	s.store.Set(ctx, moodify.KeyPosts, updated, true)
	return p.Clone(), nil
}

// Run loads the feed and then polls every interval until ctx is done.
// A session runs at most one poll loop at a time.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.Load(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Feed polling started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Feed polling stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Session) fetch(ctx context.Context) ([]moodify.Post, bool) {
	raw, ok := s.store.Get(ctx, moodify.KeyPosts, true)
	if !ok {
		return nil, false
	}
	var posts []moodify.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		s.logger.Warn("Shared post list is malformed", "error", err)
		return nil, false
	}
	return posts, true
}

func (s *Session) indexLocked(id int64) int {
	return slices.IndexFunc(s.known, func(p moodify.Post) bool { return p.ID == id })
}

func clonePosts(posts []moodify.Post) []moodify.Post {
	if posts == nil {
		return []moodify.Post{}
	}
	out := make([]moodify.Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
