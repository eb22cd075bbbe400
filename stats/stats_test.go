package stats

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"moodify/pkg/moodify"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		top   moodify.Mood
		total int
	}{
		{name: "no keywords", text: "went to the shop", top: moodify.Happy, total: 1},
		{name: "happy", text: "So HAPPY and grateful today", top: moodify.Happy, total: 2},
		{name: "sad", text: "I miss you, feeling lonely and lost", top: moodify.Sad, total: 3},
		{name: "multi word keyword", text: "fed up with this, ugh", top: moodify.Angry, total: 2},
		{name: "repeat counts once", text: "calm calm calm", top: moodify.Chill, total: 1},
		{name: "easy counts double", text: "easy", top: moodify.Chill, total: 2},
		{name: "easy outweighs one sad word", text: "so easy, I miss it", top: moodify.Chill, total: 3},
		{name: "tie goes to earlier mood", text: "sad but lit", top: moodify.Sad, total: 2},
		{name: "hyped", text: "LET'S GO this is epic", top: moodify.Hyped, total: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.text)
			if got.Top != tt.top || got.Total != tt.total {
				t.Errorf("Analyze(%q) top=%q total=%d, want %q and %d", tt.text, got.Top, got.Total, tt.top, tt.total)
			}
			if len(got.Scores) != 5 {
				t.Errorf("Analyze() returned %d scores, want 5", len(got.Scores))
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.Local)
	day := func(back int) string { return now.AddDate(0, 0, -back).Format(moodify.DayLayout) }

	history := []moodify.HistoryEntry{
		{Mood: moodify.Sad, Date: day(20)},
		{Mood: moodify.Chill, Date: day(4)},
		{Mood: moodify.Happy, Date: day(2)},
		{Mood: moodify.Chill, Date: day(1)},
		{Mood: moodify.Chill, Date: day(0)},
		{Mood: moodify.Happy, Date: day(0)},
	}
	posts := []moodify.Post{
		{Mood: moodify.Hyped}, {Mood: moodify.Hyped}, {Mood: moodify.Sad},
		{Mood: moodify.Angry}, {Mood: moodify.Chill}, {Mood: moodify.Romantic}, {Mood: moodify.Nostalgic},
	}

	s := Summarize(history, posts, now)

	wantWeek := []int{0, 0, 1, 0, 1, 1, 2}
	gotWeek := make([]int, 0, len(s.Week))
	for _, d := range s.Week {
		gotWeek = append(gotWeek, d.Total)
	}
	if diff := cmp.Diff(wantWeek, gotWeek); diff != "" {
		t.Errorf("week mismatch (-want +got):\n%s", diff)
	}
	if s.Week[Days-1].Date != "Mon Mar 10 2025" {
		t.Errorf("last day = %q, want today", s.Week[Days-1].Date)
	}
	if s.Streak != 3 {
		t.Errorf("Streak = %d, want 3", s.Streak)
	}
	if s.TopMood != moodify.Chill {
		t.Errorf("TopMood = %q, want chill", s.TopMood)
	}
	wantMoods := []MoodCount{{moodify.Chill, 3}, {moodify.Happy, 2}, {moodify.Sad, 1}}
	if diff := cmp.Diff(wantMoods, s.Moods); diff != "" {
		t.Errorf("moods mismatch (-want +got):\n%s", diff)
	}
	if s.Posts != 7 {
		t.Errorf("Posts = %d, want 7", s.Posts)
	}
	wantTrending := []MoodCount{{moodify.Hyped, 2}, {moodify.Sad, 1}, {moodify.Angry, 1}, {moodify.Chill, 1}, {moodify.Romantic, 1}}
	if diff := cmp.Diff(wantTrending, s.Trending); diff != "" {
		t.Errorf("trending mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil, time.Now())
	if s.Streak != 0 || s.TopMood != "" || s.Posts != 0 || len(s.Week) != Days {
		t.Errorf("Summarize(empty) = %+v", s)
	}
}

func TestReactionsFor(t *testing.T) {
	posts := []moodify.Post{
		{Author: "x", Reactions: map[string]int{"🔥": 2, "😂": 1}},
		{Author: "y", Reactions: map[string]int{"🔥": 5}},
		{Author: "x"},
		{Author: "x", Reactions: map[string]int{"❤️": 4}},
	}
	if got := ReactionsFor(posts, "x"); got != 7 {
		t.Errorf("ReactionsFor(x) = %d, want 7", got)
	}
	if got := ReactionsFor(posts, "nobody"); got != 0 {
		t.Errorf("ReactionsFor(nobody) = %d, want 0", got)
	}
}

func TestRecentAuthors(t *testing.T) {
	posts := []moodify.Post{{Author: "c"}, {Author: "a"}, {Author: "c"}, {Author: ""}, {Author: "b"}, {Author: "d"}}
	if diff := cmp.Diff([]string{"c", "a", "b"}, RecentAuthors(posts, 3)); diff != "" {
		t.Errorf("RecentAuthors mismatch (-want +got):\n%s", diff)
	}
	if got := RecentAuthors(nil, 3); len(got) != 0 {
		t.Errorf("RecentAuthors(nil) = %v", got)
	}
}
