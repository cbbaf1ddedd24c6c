// Package metrics computes derived metrics over the event store: counts,
// cadences, per-repository activity, trending, time series, health scores,
// and anomalies. All functions are pure over the store; windows are taken
// in minutes or hours from "now" and converted once at entry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skridlevsky/repopulse/internal/event"
	"github.com/skridlevsky/repopulse/internal/store"
)

// ErrInvalidArgument marks caller mistakes (non-positive windows, missing
// repo, unknown ids). It never reflects store state.
var ErrInvalidArgument = errors.New("invalid argument")

// Service is the query engine. It holds no state beyond its dependencies.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a metrics service over the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// EventCounts is the per-kind count report. Counts always covers the full
// monitored kind set, zeros included. FellBackToAlltime is set when the
// window held nothing but the store did not, in which case the counts are
// all-time (the public feed is sparse over short windows).
type EventCounts struct {
	OffsetMinutes     int                `json:"offset_minutes"`
	Repo              string             `json:"repo,omitempty"`
	Total             int                `json:"total"`
	Counts            map[event.Kind]int `json:"counts"`
	FellBackToAlltime bool               `json:"fell_back_to_alltime"`
	Timestamp         time.Time          `json:"timestamp"`
}

// EventCounts counts events per kind in the trailing window.
func (s *Service) EventCounts(ctx context.Context, offsetMinutes int, repo string) (*EventCounts, error) {
	if offsetMinutes <= 0 {
		return nil, fmt.Errorf("%w: offset_minutes must be positive, got %d", ErrInvalidArgument, offsetMinutes)
	}

	now := s.now().UTC()
	since := now.Add(-time.Duration(offsetMinutes) * time.Minute)

	counts, err := s.store.CountByKind(ctx, since, repo)
	if err != nil {
		return nil, err
	}
	total := sumCounts(counts)

	fellBack := false
	if total == 0 {
		stored, err := s.store.TotalCount(ctx)
		if err != nil {
			return nil, err
		}
		if stored > 0 {
			counts, err = s.store.CountByKind(ctx, time.Time{}, repo)
			if err != nil {
				return nil, err
			}
			total = sumCounts(counts)
			fellBack = total > 0
		}
	}

	return &EventCounts{
		OffsetMinutes:     offsetMinutes,
		Repo:              repo,
		Total:             total,
		Counts:            fillKinds(counts),
		FellBackToAlltime: fellBack,
		Timestamp:         now,
	}, nil
}

// PRIntervalStats describes the cadence of PR openings for one repo.
// Insufficient is set when fewer than two openings exist; the numeric
// fields are then zero.
type PRIntervalStats struct {
	Repo          string  `json:"repo"`
	PRCount       int     `json:"pr_count"`
	Insufficient  bool    `json:"insufficient,omitempty"`
	AvgSeconds    float64 `json:"avg_seconds"`
	MedianSeconds float64 `json:"median_seconds"`
	MinSeconds    float64 `json:"min_seconds"`
	MaxSeconds    float64 `json:"max_seconds"`
	AvgHours      float64 `json:"avg_hours"`
	AvgDays       float64 `json:"avg_days"`
}

// AvgPRInterval reports statistics over the gaps between consecutive PR
// opened events for a repo, all-time.
func (s *Service) AvgPRInterval(ctx context.Context, repo string) (*PRIntervalStats, error) {
	if repo == "" {
		return nil, fmt.Errorf("%w: repo is required", ErrInvalidArgument)
	}

	timestamps, err := s.store.PROpenedTimestamps(ctx, repo)
	if err != nil {
		return nil, err
	}
	if len(timestamps) < 2 {
		return &PRIntervalStats{Repo: repo, PRCount: len(timestamps), Insufficient: true}, nil
	}

	gaps := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		gaps = append(gaps, timestamps[i].Sub(timestamps[i-1]).Seconds())
	}
	min, max := minMax(gaps)
	avg := mean(gaps)

	return &PRIntervalStats{
		Repo:          repo,
		PRCount:       len(timestamps),
		AvgSeconds:    avg,
		MedianSeconds: percentile(gaps, 50),
		MinSeconds:    min,
		MaxSeconds:    max,
		AvgHours:      avg / 3600,
		AvgDays:       avg / 86400,
	}, nil
}

// DurationStats is the shape shared by PR merge time and issue
// first-response time.
type DurationStats struct {
	Repo       string  `json:"repo"`
	Hours      int     `json:"hours"`
	Count      int     `json:"count"`
	AvgSeconds float64 `json:"avg_seconds"`
	P50        float64 `json:"p50"`
	P90        float64 `json:"p90"`
}

// PRMergeTime reports how long PRs took from opened to merged in the
// window.
func (s *Service) PRMergeTime(ctx context.Context, repo string, hours int) (*DurationStats, error) {
	since, err := s.windowHours(repo, hours)
	if err != nil {
		return nil, err
	}
	durations, err := s.store.PRMergeDurations(ctx, repo, since)
	if err != nil {
		return nil, err
	}
	return durationStats(repo, hours, durations), nil
}

// IssueFirstResponse reports how long issues waited for their first
// comment in the window.
func (s *Service) IssueFirstResponse(ctx context.Context, repo string, hours int) (*DurationStats, error) {
	since, err := s.windowHours(repo, hours)
	if err != nil {
		return nil, err
	}
	durations, err := s.store.IssueFirstResponseDurations(ctx, repo, since)
	if err != nil {
		return nil, err
	}
	return durationStats(repo, hours, durations), nil
}

func durationStats(repo string, hours int, durations []store.Duration) *DurationStats {
	secs := make([]float64, 0, len(durations))
	for _, d := range durations {
		secs = append(secs, d.Seconds)
	}
	return &DurationStats{
		Repo:       repo,
		Hours:      hours,
		Count:      len(secs),
		AvgSeconds: mean(secs),
		P50:        percentile(secs, 50),
		P90:        percentile(secs, 90),
	}
}

// ActivityReport is the per-repo windowed aggregation. AllTime flags the
// fallback to all-time aggregation when the window was empty.
type ActivityReport struct {
	Repo      string                            `json:"repo"`
	Hours     int                               `json:"hours"`
	Total     int                               `json:"total"`
	Activity  map[event.Kind]store.ActivityStat `json:"activity"`
	AllTime   bool                              `json:"all_time"`
	Timestamp time.Time                         `json:"timestamp"`
}

// RepoActivity aggregates one repo's events per kind in the window. A
// repo never seen yields an empty report, not an error.
func (s *Service) RepoActivity(ctx context.Context, repo string, hours int) (*ActivityReport, error) {
	since, err := s.windowHours(repo, hours)
	if err != nil {
		return nil, err
	}
	ra, err := s.store.RepoActivity(ctx, repo, since)
	if err != nil {
		return nil, err
	}
	return &ActivityReport{
		Repo:      repo,
		Hours:     hours,
		Total:     ra.Total,
		Activity:  ra.Activity,
		AllTime:   ra.AllTime,
		Timestamp: s.now().UTC(),
	}, nil
}

// Trending ranks repos by total event count in the window, ties broken by
// repo name ascending.
func (s *Service) Trending(ctx context.Context, hours, limit int) ([]store.TrendingRepo, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidArgument, hours)
	}
	if limit <= 0 {
		limit = 10
	}
	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	return s.store.Trending(ctx, since, limit)
}

// Timeseries tiles the window into bucket_minutes-wide half-open buckets
// of per-kind counts. The final bucket ends at "now" and may be short.
func (s *Service) Timeseries(ctx context.Context, hours, bucketMinutes int, repo string) ([]store.Bucket, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidArgument, hours)
	}
	if bucketMinutes < 1 {
		return nil, fmt.Errorf("%w: bucket_minutes must be at least 1, got %d", ErrInvalidArgument, bucketMinutes)
	}
	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	return s.store.Timeseries(ctx, since, time.Duration(bucketMinutes)*time.Minute, repo)
}

// KindCount is a convenience count of a single kind in a window.
type KindCount struct {
	Repo      string     `json:"repo,omitempty"`
	Hours     int        `json:"hours"`
	Kind      event.Kind `json:"kind"`
	Count     int        `json:"count"`
	Timestamp time.Time  `json:"timestamp"`
}

// Stars counts WatchEvents (stars) in the window.
func (s *Service) Stars(ctx context.Context, repo string, hours int) (*KindCount, error) {
	return s.kindCount(ctx, event.KindWatch, repo, hours)
}

// Releases counts published ReleaseEvents in the window.
func (s *Service) Releases(ctx context.Context, repo string, hours int) (*KindCount, error) {
	return s.kindCount(ctx, event.KindRelease, repo, hours)
}

func (s *Service) kindCount(ctx context.Context, kind event.Kind, repo string, hours int) (*KindCount, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidArgument, hours)
	}
	now := s.now().UTC()
	counts, err := s.store.CountByKind(ctx, now.Add(-time.Duration(hours)*time.Hour), repo)
	if err != nil {
		return nil, err
	}
	return &KindCount{Repo: repo, Hours: hours, Kind: kind, Count: counts[kind], Timestamp: now}, nil
}

// PushStats counts pushes and the commits they carried (payload.size
// summed across PushEvents).
type PushStats struct {
	Repo         string    `json:"repo,omitempty"`
	Hours        int       `json:"hours"`
	PushCount    int       `json:"push_count"`
	TotalCommits int       `json:"total_commits"`
	Timestamp    time.Time `json:"timestamp"`
}

// Pushes reports push and commit counts in the window.
func (s *Service) Pushes(ctx context.Context, repo string, hours int) (*PushStats, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidArgument, hours)
	}
	now := s.now().UTC()
	since := now.Add(-time.Duration(hours) * time.Hour)

	counts, err := s.store.CountByKind(ctx, since, repo)
	if err != nil {
		return nil, err
	}
	commits, err := s.store.PushCommitSum(ctx, since, repo)
	if err != nil {
		return nil, err
	}
	return &PushStats{
		Repo:         repo,
		Hours:        hours,
		PushCount:    counts[event.KindPush],
		TotalCommits: commits,
		Timestamp:    now,
	}, nil
}

func (s *Service) windowHours(repo string, hours int) (time.Time, error) {
	if repo == "" {
		return time.Time{}, fmt.Errorf("%w: repo is required", ErrInvalidArgument)
	}
	if hours <= 0 {
		return time.Time{}, fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidArgument, hours)
	}
	return s.now().UTC().Add(-time.Duration(hours) * time.Hour), nil
}

func sumCounts(counts map[event.Kind]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// fillKinds extends a count map to cover the full monitored set.
func fillKinds(counts map[event.Kind]int) map[event.Kind]int {
	full := event.ZeroCounts()
	for k, c := range counts {
		full[k] = c
	}
	return full
}
