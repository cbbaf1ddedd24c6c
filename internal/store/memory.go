package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/skridlevsky/repopulse/internal/event"
)

// Memory is an in-memory Store. It backs the test suite and runs without
// a database; the semantics match the Postgres implementation.
type Memory struct {
	mu     sync.RWMutex
	events []*event.Event
	byID   map[string]struct{}

	// Now is the clock used for collected_at and timeseries tiling.
	// Tests override it.
	Now func() time.Time
}

// NewMemory creates an empty in-memory event store.
func NewMemory() *Memory {
	return &Memory{
		byID: make(map[string]struct{}),
		Now:  time.Now,
	}
}

func (s *Memory) InsertMany(ctx context.Context, events []*event.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	inserted := 0
	for _, e := range events {
		if _, dup := s.byID[e.ID]; dup {
			continue
		}
		stored := *e
		stored.CollectedAt = now
		s.byID[e.ID] = struct{}{}
		s.events = append(s.events, &stored)
		inserted++
	}
	return inserted, nil
}

func (s *Memory) CountByKind(ctx context.Context, since time.Time, repo string) (map[event.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[event.Kind]int)
	for _, e := range s.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		if repo != "" && e.Repo != repo {
			continue
		}
		counts[e.Kind]++
	}
	return counts, nil
}

func (s *Memory) TotalCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

func (s *Memory) PROpenedTimestamps(ctx context.Context, repo string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var timestamps []time.Time
	for _, e := range s.events {
		if e.Repo != repo || e.Kind != event.KindPullRequest {
			continue
		}
		var p prPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.Action != "opened" {
			continue
		}
		timestamps = append(timestamps, e.CreatedAt)
	}
	sortTimes(timestamps)
	return timestamps, nil
}

func (s *Memory) PRMergeDurations(ctx context.Context, repo string, since time.Time) ([]Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []prRow
	for _, e := range s.events {
		if e.Repo != repo || e.Kind != event.KindPullRequest || e.CreatedAt.Before(since) {
			continue
		}
		var p prPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			continue
		}
		number := p.PullRequest.Number
		if number == 0 {
			number = p.Number
		}
		if number == 0 {
			continue
		}
		rows = append(rows, prRow{
			Number:    number,
			Action:    p.Action,
			Merged:    p.PullRequest.Merged,
			CreatedAt: e.CreatedAt,
		})
	}
	return pairMergeDurations(rows), nil
}

func (s *Memory) IssueFirstResponseDurations(ctx context.Context, repo string, since time.Time) ([]Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var opens, comments []numberedRow
	for _, e := range s.events {
		if e.Repo != repo || e.CreatedAt.Before(since) {
			continue
		}
		var p issuePayload
		switch e.Kind {
		case event.KindIssues:
			if err := json.Unmarshal(e.Payload, &p); err != nil || p.Action != "opened" || p.Issue.Number == 0 {
				continue
			}
			opens = append(opens, numberedRow{Number: p.Issue.Number, CreatedAt: e.CreatedAt})
		case event.KindIssueComment:
			if err := json.Unmarshal(e.Payload, &p); err != nil || p.Issue.Number == 0 {
				continue
			}
			comments = append(comments, numberedRow{Number: p.Issue.Number, CreatedAt: e.CreatedAt})
		}
	}
	return pairFirstResponses(opens, comments), nil
}

func (s *Memory) RepoActivity(ctx context.Context, repo string, since time.Time) (*RepoActivity, error) {
	activity, total := s.repoActivitySince(repo, since)
	if total > 0 {
		return &RepoActivity{Activity: activity, Total: total}, nil
	}
	activity, total = s.repoActivitySince(repo, time.Time{})
	return &RepoActivity{Activity: activity, Total: total, AllTime: total > 0}, nil
}

func (s *Memory) repoActivitySince(repo string, since time.Time) (map[event.Kind]ActivityStat, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity := make(map[event.Kind]ActivityStat)
	total := 0
	for _, e := range s.events {
		if e.Repo != repo || e.CreatedAt.Before(since) {
			continue
		}
		stat, ok := activity[e.Kind]
		if !ok {
			stat = ActivityStat{FirstTS: e.CreatedAt, LastTS: e.CreatedAt}
		}
		stat.Count++
		if e.CreatedAt.Before(stat.FirstTS) {
			stat.FirstTS = e.CreatedAt
		}
		if e.CreatedAt.After(stat.LastTS) {
			stat.LastTS = e.CreatedAt
		}
		activity[e.Kind] = stat
		total++
	}
	return activity, total
}

func (s *Memory) Trending(ctx context.Context, since time.Time, limit int) ([]TrendingRepo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRepo := make(map[string]*TrendingRepo)
	for _, e := range s.events {
		if e.Repo == "" || e.CreatedAt.Before(since) {
			continue
		}
		tr, ok := byRepo[e.Repo]
		if !ok {
			tr = &TrendingRepo{Repo: e.Repo, Counts: event.ZeroCounts(), FirstTS: e.CreatedAt, LastTS: e.CreatedAt}
			byRepo[e.Repo] = tr
		}
		tr.Counts[e.Kind]++
		tr.Total++
		if e.CreatedAt.Before(tr.FirstTS) {
			tr.FirstTS = e.CreatedAt
		}
		if e.CreatedAt.After(tr.LastTS) {
			tr.LastTS = e.CreatedAt
		}
	}
	return rankTrending(byRepo, limit), nil
}

func (s *Memory) Timeseries(ctx context.Context, since time.Time, width time.Duration, repo string) ([]Bucket, error) {
	s.mu.RLock()
	now := s.Now().UTC()
	var events []kindTime
	for _, e := range s.events {
		if repo != "" && e.Repo != repo {
			continue
		}
		events = append(events, kindTime{Kind: e.Kind, CreatedAt: e.CreatedAt})
	}
	s.mu.RUnlock()

	return tileBuckets(since, now, width, events), nil
}

func (s *Memory) PushCommitSum(ctx context.Context, since time.Time, repo string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := 0
	for _, e := range s.events {
		if e.Kind != event.KindPush || e.CreatedAt.Before(since) {
			continue
		}
		if repo != "" && e.Repo != repo {
			continue
		}
		var p pushPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			continue
		}
		sum += p.Size
	}
	return sum, nil
}

// Payload fragments the aggregations read. The store is otherwise opaque
// to payload shape.
type prPayload struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Number int  `json:"number"`
		Merged bool `json:"merged"`
	} `json:"pull_request"`
}

type issuePayload struct {
	Action string `json:"action"`
	Issue  struct {
		Number int `json:"number"`
	} `json:"issue"`
}

type pushPayload struct {
	Size int `json:"size"`
}

func sortTimes(ts []time.Time) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}
