package store

import (
	"sort"
	"time"

	"github.com/skridlevsky/repopulse/internal/event"
)

// prRow is the slice of a PullRequestEvent the merge-duration pairing
// reads: payload.action, payload.pull_request.number/merged.
type prRow struct {
	Number    int
	Action    string
	Merged    bool
	CreatedAt time.Time
}

// numberedRow is an event reduced to an issue number and a timestamp.
type numberedRow struct {
	Number    int
	CreatedAt time.Time
}

// kindTime is an event reduced to the fields bucketing needs.
type kindTime struct {
	Kind      event.Kind
	CreatedAt time.Time
}

// pairMergeDurations computes, per PR number, the seconds between the
// earliest opened event and the earliest closed-and-merged event.
// PRs lacking either side, and negative durations, yield nothing.
func pairMergeDurations(rows []prRow) []Duration {
	opened := make(map[int]time.Time)
	merged := make(map[int]time.Time)
	for _, r := range rows {
		switch {
		case r.Action == "opened":
			if t, ok := opened[r.Number]; !ok || r.CreatedAt.Before(t) {
				opened[r.Number] = r.CreatedAt
			}
		case r.Action == "closed" && r.Merged:
			if t, ok := merged[r.Number]; !ok || r.CreatedAt.Before(t) {
				merged[r.Number] = r.CreatedAt
			}
		}
	}
	return pairDurations(opened, merged)
}

// pairFirstResponses computes, per issue number, the seconds between the
// earliest opened event and the earliest comment.
func pairFirstResponses(opens, comments []numberedRow) []Duration {
	opened := make(map[int]time.Time)
	for _, r := range opens {
		if t, ok := opened[r.Number]; !ok || r.CreatedAt.Before(t) {
			opened[r.Number] = r.CreatedAt
		}
	}
	responded := make(map[int]time.Time)
	for _, r := range comments {
		if t, ok := responded[r.Number]; !ok || r.CreatedAt.Before(t) {
			responded[r.Number] = r.CreatedAt
		}
	}
	return pairDurations(opened, responded)
}

func pairDurations(start, end map[int]time.Time) []Duration {
	out := make([]Duration, 0, len(start))
	for number, s := range start {
		e, ok := end[number]
		if !ok {
			continue
		}
		secs := e.Sub(s).Seconds()
		if secs < 0 {
			continue
		}
		out = append(out, Duration{Number: number, Seconds: secs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// tileBuckets tiles [since, now) with width-sized half-open buckets and
// counts the given events into them. The last bucket is truncated to end
// exactly at now. Every bucket's count map covers the full kind set.
func tileBuckets(since, now time.Time, width time.Duration, events []kindTime) []Bucket {
	if !since.Before(now) || width <= 0 {
		return []Bucket{}
	}

	var buckets []Bucket
	for start := since; start.Before(now); start = start.Add(width) {
		end := start.Add(width)
		if end.After(now) {
			end = now
		}
		buckets = append(buckets, Bucket{Start: start, End: end, Counts: event.ZeroCounts()})
	}

	for _, e := range events {
		if e.CreatedAt.Before(since) || !e.CreatedAt.Before(now) {
			continue
		}
		i := int(e.CreatedAt.Sub(since) / width)
		if i >= 0 && i < len(buckets) {
			buckets[i].Counts[e.Kind]++
		}
	}
	return buckets
}

// rankTrending turns per-repo per-kind aggregates into the trending list:
// total descending, ties by repo name ascending, capped at limit.
func rankTrending(byRepo map[string]*TrendingRepo, limit int) []TrendingRepo {
	out := make([]TrendingRepo, 0, len(byRepo))
	for _, tr := range byRepo {
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Repo < out[j].Repo
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
