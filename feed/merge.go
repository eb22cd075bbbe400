package feed

import (
	"time"

	"moodify/pkg/moodify"
)

// OnlineWindow is how recently an author must have posted to count as online.
const OnlineWindow = 10 * time.Minute

// Result is the outcome of merging a fetched post list into the known one.
type Result struct {
	Posts    []moodify.Post // new known list
	Fresh    []moodify.Post // posts by others not seen before, newest first
	Replaced bool           // whether Posts is the fetched list
}

// Merge decides what a session shows after a poll.
//
// Only list lengths gate the decision:
//   - longer: the fetched list wins, and its posts with unseen ids written by
//     someone other than self are reported as fresh;
//   - same length: the fetched list wins, picking up reactions and replies;
//   - shorter: the known list is kept, so a racing writer that truncated the
//     shared list cannot erase posts already on screen.
//
// An append combined with a removal that keeps the length, or an edit to an
// older post's text, is treated as an in-place update and yields no fresh
// posts.
func Merge(known, fetched []moodify.Post, self string) Result {
	switch {
	case len(fetched) > len(known):
		seen := make(map[int64]struct{}, len(known))
		for _, p := range known {
			seen[p.ID] = struct{}{}
		}
		var fresh []moodify.Post
		for _, p := range fetched {
			if _, ok := seen[p.ID]; ok || p.Author == self {
				continue
			}
			fresh = append(fresh, p)
		}
		return Result{Posts: fetched, Fresh: fresh, Replaced: true}
	case len(fetched) == len(known):
		return Result{Posts: fetched, Replaced: true}
	default:
		return Result{Posts: known}
	}
}

// Online estimates how many people are active: distinct authors with a post
// newer than OnlineWindow, plus self. The result is at least 1.
func Online(posts []moodify.Post, self string, now time.Time) int {
	cutoff := now.Add(-OnlineWindow).UnixMilli()
	active := make(map[string]struct{})
	for _, p := range posts {
		if p.TS > cutoff {
			active[p.Author] = struct{}{}
		}
	}
	if self != "" {
		active[self] = struct{}{}
	}
	return max(1, len(active))
}
