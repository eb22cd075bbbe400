// Package journal holds the per-device data that never leaves the local
// store: profile, current mood, mood history and time capsules.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"moodify/pkg/moodify"
	"moodify/sanitize"
)

const (
	// MaxHistory is how many mood history entries are kept.
	MaxHistory = 100
	// CapsuleDelay is how long a sealed capsule stays locked.
	CapsuleDelay = 7 * 24 * time.Hour
)

var (
	ErrInvalidMood   = errors.New("unknown mood")
	ErrInvalidName   = errors.New("name must be 2 to 20 characters")
	ErrInvalidAvatar = errors.New("unknown avatar")
	ErrEmptyCapsule  = errors.New("capsule text is empty")
)

// Store reads and writes values by key.
type Store interface {
	Get(ctx context.Context, key string, shared bool) (json.RawMessage, bool)
	Set(ctx context.Context, key string, value any, shared bool)
}

// Capsule is a stored capsule with its lock state at read time.
// Text is withheld while the capsule is locked.
type Capsule struct {
	moodify.Capsule

	Unlocked bool `json:"unlocked"`
}

// Journal reads and updates local journal data.
type Journal struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	// mu serialises read-modify-write of list values.
	mu sync.Mutex
}

// New creates a journal over store. A nil now uses time.Now.
func New(store Store, logger *slog.Logger, now func() time.Time) *Journal {
	if now == nil {
		now = time.Now
	}
	return &Journal{store: store, logger: logger, now: now}
}

// Mood returns the current mood, happy if none was chosen.
func (j *Journal) Mood(ctx context.Context) moodify.Mood {
	var m moodify.Mood
	if !j.load(ctx, moodify.KeyMood, &m) || !m.Valid() {
		return moodify.Happy
	}
	return m
}

// SetMood stores m as the current mood and records it in the history.
func (j *Journal) SetMood(ctx context.Context, m moodify.Mood) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMood, m)
	}
	j.store.Set(ctx, moodify.KeyMood, m, false)
	j.Record(ctx, m)
	j.logger.Info("Mood set", "mood", m)
	return nil
}

// Record appends a history entry for today, dropping the oldest entries
// beyond MaxHistory.
func (j *Journal) Record(ctx context.Context, m moodify.Mood) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var hist []moodify.HistoryEntry
	j.load(ctx, moodify.KeyMoodHistory, &hist)
	hist = append(hist, moodify.HistoryEntry{Mood: m, Date: j.now().Format(moodify.DayLayout)})
	if over := len(hist) - MaxHistory; over > 0 {
		hist = hist[over:]
	}
	j.store.Set(ctx, moodify.KeyMoodHistory, hist, false)
}

// History returns the mood history, oldest first.
func (j *Journal) History(ctx context.Context) []moodify.HistoryEntry {
	var hist []moodify.HistoryEntry
	j.load(ctx, moodify.KeyMoodHistory, &hist)
	if hist == nil {
		return []moodify.HistoryEntry{}
	}
	return hist
}

// Profile returns the stored profile, if any.
func (j *Journal) Profile(ctx context.Context) (moodify.User, bool) {
	var u moodify.User
	if !j.load(ctx, moodify.KeyUser, &u) || u.Name == "" {
		return moodify.User{}, false
	}
	return u, true
}

// SaveProfile validates and stores u. The name is cleaned of markup first.
func (j *Journal) SaveProfile(ctx context.Context, u moodify.User) (moodify.User, error) {
	u.Name = sanitize.Text(u.Name)
	if n := utf8.RuneCountInString(u.Name); n < moodify.MinNameLen || n > moodify.MaxNameLen {
		return moodify.User{}, ErrInvalidName
	}
	u.Avatar = strings.TrimSpace(u.Avatar)
	if !slices.Contains(moodify.Avatars, u.Avatar) {
		return moodify.User{}, fmt.Errorf("%w: %q", ErrInvalidAvatar, u.Avatar)
	}
	j.store.Set(ctx, moodify.KeyUser, u, false)
	j.logger.Info("Profile saved", "name", u.Name)
	return u, nil
}

// Seal stores a capsule written now that opens after CapsuleDelay.
func (j *Journal) Seal(ctx context.Context, text string) (moodify.Capsule, error) {
	text = sanitize.Truncate(sanitize.Text(text), moodify.MaxTextLen)
	if text == "" {
		return moodify.Capsule{}, ErrEmptyCapsule
	}
	user, _ := j.Profile(ctx)
	mood := j.Mood(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()

	var caps []moodify.Capsule
	j.load(ctx, moodify.KeyCapsules, &caps)

	now := j.now()
	c := moodify.Capsule{
		ID:       now.UnixMilli(),
		Text:     text,
		Mood:     mood,
		Author:   user.Name,
		UnlockAt: now.Add(CapsuleDelay).UnixMilli(),
		TS:       now.UnixMilli(),
	}
	if len(caps) > 0 && c.ID <= caps[0].ID {
		c.ID = caps[0].ID + 1
	}
	caps = append([]moodify.Capsule{c}, caps...)
	j.store.Set(ctx, moodify.KeyCapsules, caps, false)

	j.logger.Info("Capsule sealed", "id", c.ID, "unlock_at", time.UnixMilli(c.UnlockAt).UTC().Format(time.RFC3339))
	return c, nil
}

// Capsules returns stored capsules, newest first.
func (j *Journal) Capsules(ctx context.Context) []Capsule {
	var caps []moodify.Capsule
	j.load(ctx, moodify.KeyCapsules, &caps)

	now := j.now()
	out := make([]Capsule, 0, len(caps))
	for _, c := range caps {
		v := Capsule{Capsule: c, Unlocked: c.Unlocked(now)}
		if !v.Unlocked {
			v.Text = ""
		}
		out = append(out, v)
	}
	return out
}

func (j *Journal) load(ctx context.Context, key string, v any) bool {
	raw, ok := j.store.Get(ctx, key, false)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		j.logger.Warn("Stored value is malformed", "key", key, "error", err)
		return false
	}
	return true
}
