// Package stats derives read-only figures from posts and mood history.
package stats

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"moodify/pkg/moodify"
)

// Days is the length of the activity window in Summary.
const Days = 7

// TrendingLimit caps Summary.Trending.
const TrendingLimit = 5

// keywords maps the moods Analyze can detect to the phrases that hint at them.
// Order is the tie-break order. A phrase listed twice counts twice.
var keywords = []struct {
	mood  moodify.Mood
	words []string
}{
	{moodify.Happy, []string{"happy", "joy", "love", "great", "awesome", "amazing", "excited", "yay", "blessed", "grateful", "wonderful", "smile", "laugh"}},
	{moodify.Sad, []string{"sad", "cry", "miss", "lonely", "hurt", "pain", "broken", "tears", "alone", "grief", "depressed", "empty", "lost"}},
	{moodify.Angry, []string{"angry", "hate", "furious", "mad", "annoyed", "rage", "awful", "terrible", "worst", "ugh", "disgusting", "fed up"}},
	{moodify.Chill, []string{"chill", "relax", "calm", "peaceful", "mellow", "cool", "fine", "easy", "zen", "easy", "quiet", "slow"}},
	{moodify.Hyped, []string{"fire", "hype", "epic", "crazy", "insane", "wild", "lit", "omg", "incredible", "pumped", "let's go", "yesss"}},
}

// Score is one mood's keyword count.
type Score struct {
	Mood  moodify.Mood `json:"mood"`
	Count int          `json:"count"`
}

// Analysis is the keyword breakdown of a text.
type Analysis struct {
	Scores []Score      `json:"scores"`
	Total  int          `json:"total"` // sum of counts, at least 1
	Top    moodify.Mood `json:"top"`
}

// Analyze counts how many keywords of each mood occur in text.
// Matching is case-insensitive substring matching, and each listed keyword
// counts once however often it appears in text.
func Analyze(text string) Analysis {
	text = strings.ToLower(text)

	a := Analysis{Scores: make([]Score, 0, len(keywords))}
	best := -1
	for _, k := range keywords {
		n := 0
		for _, w := range k.words {
			if strings.Contains(text, w) {
				n++
			}
		}
		a.Scores = append(a.Scores, Score{Mood: k.mood, Count: n})
		a.Total += n
		if n > best {
			best = n
			a.Top = k.mood
		}
	}
	a.Total = max(1, a.Total)
	return a
}

// Day is the number of history entries recorded on one calendar day.
type Day struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
}

// MoodCount pairs a mood with an occurrence count.
type MoodCount struct {
	Mood  moodify.Mood `json:"mood"`
	Count int          `json:"count"`
}

// Summary aggregates a user's history and the shared feed.
type Summary struct {
	Week     []Day        `json:"week"`   // oldest first, ending today
	Streak   int          `json:"streak"` // consecutive active days ending today
	TopMood  moodify.Mood `json:"topMood,omitempty"`
	Moods    []MoodCount  `json:"moods"` // history totals, most frequent first
	Posts    int          `json:"posts"`
	Trending []MoodCount  `json:"trending"` // post moods, most frequent first
}

// Summarize computes a Summary as of now, in now's location.
func Summarize(history []moodify.HistoryEntry, posts []moodify.Post, now time.Time) Summary {
	perDay := make(map[string]int, len(history))
	perMood := make(map[moodify.Mood]int)
	for _, h := range history {
		perDay[h.Date]++
		perMood[h.Mood]++
	}

	s := Summary{
		Week:  make([]Day, Days),
		Moods: ranked(perMood, 0),
		Posts: len(posts),
	}
	for i := range Days {
		date := now.AddDate(0, 0, i-(Days-1)).Format(moodify.DayLayout)
		s.Week[i] = Day{Date: date, Total: perDay[date]}
	}
	for i := Days - 1; i >= 0 && s.Week[i].Total > 0; i-- {
		s.Streak++
	}
	if len(s.Moods) > 0 {
		s.TopMood = s.Moods[0].Mood
	}

	perPostMood := make(map[moodify.Mood]int)
	for _, p := range posts {
		perPostMood[p.Mood]++
	}
	s.Trending = ranked(perPostMood, TrendingLimit)
	return s
}

// ranked orders counts descending, breaking ties by the fixed mood order
// and then by name. A limit of 0 keeps everything.
func ranked(counts map[moodify.Mood]int, limit int) []MoodCount {
	out := make([]MoodCount, 0, len(counts))
	for m, n := range counts {
		out = append(out, MoodCount{Mood: m, Count: n})
	}
	slices.SortFunc(out, func(a, b MoodCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(order(a.Mood), order(b.Mood)); c != 0 {
			return c
		}
		return strings.Compare(string(a.Mood), string(b.Mood))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func order(m moodify.Mood) int {
	if i := slices.Index(moodify.Moods, m); i >= 0 {
		return i
	}
	return len(moodify.Moods)
}

// ReactionsFor totals the reactions on posts written by author.
func ReactionsFor(posts []moodify.Post, author string) int {
	total := 0
	for _, p := range posts {
		if p.Author != author {
			continue
		}
		for _, n := range p.Reactions {
			total += n
		}
	}
	return total
}

// RecentAuthors returns up to n distinct authors in the order their newest
// post appears in posts, which is newest first.
func RecentAuthors(posts []moodify.Post, n int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range posts {
		if len(out) == n {
			break
		}
		if _, ok := seen[p.Author]; ok || p.Author == "" {
			continue
		}
		seen[p.Author] = struct{}{}
		out = append(out, p.Author)
	}
	return out
}
