// Package store persists event records and serves the aggregation shapes
// the metrics layer needs. Two implementations honor the same contract:
// Postgres (the durable backing) and an in-memory store used by tests.
package store

import (
	"context"
	"time"

	"github.com/skridlevsky/repopulse/internal/event"
)

// ActivityStat summarizes one kind's presence in a window.
type ActivityStat struct {
	Count   int       `json:"count"`
	FirstTS time.Time `json:"firstTs"`
	LastTS  time.Time `json:"lastTs"`
}

// RepoActivity is the per-repo aggregation. AllTime is set when the
// requested window was empty and the store fell back to the repo's
// all-time aggregation.
type RepoActivity struct {
	Activity map[event.Kind]ActivityStat `json:"activity"`
	Total    int                         `json:"total"`
	AllTime  bool                        `json:"allTime"`
}

// TrendingRepo is one entry of the trending ranking.
type TrendingRepo struct {
	Repo    string             `json:"repo"`
	Total   int                `json:"total"`
	Counts  map[event.Kind]int `json:"counts"`
	FirstTS time.Time          `json:"firstTs"`
	LastTS  time.Time          `json:"lastTs"`
}

// Bucket is one half-open [Start, End) slice of a time series.
type Bucket struct {
	Start  time.Time          `json:"start"`
	End    time.Time          `json:"end"`
	Counts map[event.Kind]int `json:"counts"`
}

// Duration is a computed per-item duration in seconds (PR merge time,
// issue first response time).
type Duration struct {
	Number  int     `json:"number"`
	Seconds float64 `json:"seconds"`
}

// Store is the event store contract. InsertMany is idempotent under retry
// and safe under concurrent readers; writers serialize in the backing.
type Store interface {
	// InsertMany appends a batch, skipping records whose id is already
	// stored, and returns the count actually inserted.
	InsertMany(ctx context.Context, events []*event.Event) (int, error)

	// CountByKind counts events at or after since, optionally limited to
	// one repo. Repo "" means all repos. Only kinds present appear.
	CountByKind(ctx context.Context, since time.Time, repo string) (map[event.Kind]int, error)

	// TotalCount returns the number of stored events.
	TotalCount(ctx context.Context) (int, error)

	// PROpenedTimestamps returns, in ascending order, the created_at of
	// every PullRequestEvent with payload action "opened" for the repo.
	PROpenedTimestamps(ctx context.Context, repo string) ([]time.Time, error)

	// PRMergeDurations returns, per PR number, the seconds between the
	// earliest opened event and the earliest closed-and-merged event in
	// the window. Negative durations are excluded.
	PRMergeDurations(ctx context.Context, repo string, since time.Time) ([]Duration, error)

	// IssueFirstResponseDurations returns, per issue number, the seconds
	// between the earliest opened IssuesEvent and the earliest
	// IssueCommentEvent for that issue in the window. Negative excluded.
	IssueFirstResponseDurations(ctx context.Context, repo string, since time.Time) ([]Duration, error)

	// RepoActivity aggregates one repo's window, falling back to the
	// repo's all-time aggregation when the window is empty.
	RepoActivity(ctx context.Context, repo string, since time.Time) (*RepoActivity, error)

	// Trending ranks repos by total event count in the window. Ties break
	// by repo name ascending.
	Trending(ctx context.Context, since time.Time, limit int) ([]TrendingRepo, error)

	// Timeseries tiles [since, now) into width-sized buckets of per-kind
	// counts. The final bucket may be short. Repo "" means all repos.
	Timeseries(ctx context.Context, since time.Time, width time.Duration, repo string) ([]Bucket, error)

	// PushCommitSum sums payload.size over PushEvents in the window,
	// approximating the number of commits pushed.
	PushCommitSum(ctx context.Context, since time.Time, repo string) (int, error)
}
