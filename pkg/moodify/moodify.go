// Package moodify contains the core domain types for the mood journal.
package moodify

import (
	"maps"
	"slices"
	"time"
)

// Shared and local storage keys.
const (
	KeyPosts       = "posts"
	KeyMoodHistory = "moodHistory"
	KeyCapsules    = "capsules"
	KeyUser        = "user"
	KeyMood        = "mood"
)

// Text limits, in characters.
const (
	MaxTextLen  = 500 // posts and capsules
	MaxReplyLen = 280
	MinNameLen  = 2
	MaxNameLen  = 20
)

// Mood is a mood key such as "happy" or "nostalgic".
type Mood string

// Known moods, in display order.
const (
	Happy     Mood = "happy"
	Sad       Mood = "sad"
	Angry     Mood = "angry"
	Chill     Mood = "chill"
	Romantic  Mood = "romantic"
	Anxious   Mood = "anxious"
	Hyped     Mood = "hyped"
	Nostalgic Mood = "nostalgic"
)

// Moods lists every valid mood in display order.
var Moods = []Mood{Happy, Sad, Angry, Chill, Romantic, Anxious, Hyped, Nostalgic}

// Valid reports whether m is one of the known moods.
func (m Mood) Valid() bool {
	return slices.Contains(Moods, m)
}

// Avatars is the fixed set of emoji a user may pick from.
var Avatars = []string{"🐱", "🦊", "🐼", "🦋", "🌟", "🎭", "🦄", "🔥", "🌈", "🎪", "🍀", "⚡", "🦁", "🐺", "🎨", "🚀", "🙈", "🤡"}

// Reactions is the fixed set of emoji a post can be reacted with.
var Reactions = []string{"😂", "❤️", "🔥", "😢", "😮"}

// Reply is a response attached to a post.
type Reply struct {
	Author string `json:"author"`
	Avatar string `json:"avatar"`
	Text   string `json:"text"`
}

// Post is a single mood-tagged feed entry.
// ID is the creation time in epoch millis and is not globally unique.
type Post struct {
	Reactions map[string]int `json:"reactions"`
	Author    string         `json:"author"`
	Avatar    string         `json:"avatar"`
	Text      string         `json:"text"`
	Mood      Mood           `json:"mood"`
	Replies   []Reply        `json:"replies"`
	ID        int64          `json:"id"`
	TS        int64          `json:"ts"`
}

// Time returns the post creation time.
func (p Post) Time() time.Time {
	return time.UnixMilli(p.TS)
}

// Clone returns a deep copy of the post.
func (p Post) Clone() Post {
	c := p
	c.Reactions = maps.Clone(p.Reactions)
	c.Replies = slices.Clone(p.Replies)
	return c
}

// User is the local profile.
type User struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// HistoryEntry records one mood selection.
// Date uses the day layout so entries group by calendar day.
type HistoryEntry struct {
	Mood Mood   `json:"mood"`
	Date string `json:"date"`
}

// DayLayout formats HistoryEntry.Date.
const DayLayout = "Mon Jan 02 2006"

// Capsule is a sealed note that opens after a delay.
type Capsule struct {
	Text     string `json:"text"`
	Mood     Mood   `json:"mood"`
	Author   string `json:"author"`
	ID       int64  `json:"id"`
	UnlockAt int64  `json:"unlockAt"`
	TS       int64  `json:"ts"`
}

// Unlocked reports whether the capsule may be opened at now.
func (c *Capsule) Unlocked(now time.Time) bool {
	return now.UnixMilli() >= c.UnlockAt
}
