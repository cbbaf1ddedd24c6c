// Package ingest drives the fetcher on a schedule or on demand and hands
// results to the event store.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skridlevsky/repopulse/internal/event"
	"github.com/skridlevsky/repopulse/internal/github"
	"github.com/skridlevsky/repopulse/internal/store"
)

// repoFetchParallelism bounds concurrent per-repo fetches during fan-out.
const repoFetchParallelism = 4

// Coordinator polls the configured feeds and stores what comes back.
// CollectNow is single-flight per process: a second concurrent call is
// coalesced to a no-op returning 0.
type Coordinator struct {
	client   *github.Client
	store    store.Store
	interval time.Duration
	limit    int
	repos    []string

	// Conditional-request state per endpoint. The fan-out goroutines
	// within a pass access the map concurrently.
	statesMu sync.Mutex
	states   map[string]*github.PageState

	inFlight  atomic.Bool
	suggested atomic.Int64 // nanoseconds, server-suggested poll interval

	statusMu     sync.RWMutex
	lastRun      time.Time
	lastStatus   string
	lastInserted int
}

// NewCoordinator creates an ingestion coordinator. When repos is empty,
// collection uses the global public feed; otherwise it fans out to each
// listed repository's feed. limit caps events kept per fetch (0 = no cap).
func NewCoordinator(client *github.Client, st store.Store, interval time.Duration, limit int, repos []string) *Coordinator {
	return &Coordinator{
		client:   client,
		store:    st,
		interval: interval,
		limit:    limit,
		repos:    repos,
		states:   make(map[string]*github.PageState),
	}
}

// CollectNow performs one collection pass and returns the number of events
// newly stored. limit and repos override the configured defaults when set
// (limit > 0, repos non-empty). Fetch failures are logged and contribute
// nothing; a store failure is surfaced to the caller.
func (c *Coordinator) CollectNow(ctx context.Context, limit int, repos []string) (int, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return 0, nil // a pass is already running
	}
	defer c.inFlight.Store(false)

	if limit <= 0 {
		limit = c.limit
	}
	if len(repos) == 0 {
		repos = c.repos
	}
	events := c.fetchAll(ctx, limit, repos)

	inserted, err := c.store.InsertMany(ctx, events)

	c.statusMu.Lock()
	c.lastRun = time.Now().UTC()
	c.lastInserted = inserted
	if err != nil {
		c.lastStatus = "error: " + err.Error()
	} else {
		c.lastStatus = "ok"
	}
	c.statusMu.Unlock()

	if err != nil {
		return inserted, err
	}
	if inserted > 0 {
		slog.Info("collection pass stored events", "fetched", len(events), "inserted", inserted)
	}
	return inserted, nil
}

// fetchAll gathers one pass worth of events: the global feed, or every
// target repo's feed in bounded parallel.
func (c *Coordinator) fetchAll(ctx context.Context, limit int, repos []string) []*event.Event {
	if len(repos) == 0 {
		events, err := c.client.GetGlobalEvents(ctx, c.state("global"), limit)
		if err != nil {
			slog.Warn("global feed fetch failed", "error", err)
		}
		c.noteSuggested()
		return events
	}

	var mu sync.Mutex
	var all []*event.Event

	g := &errgroup.Group{}
	g.SetLimit(repoFetchParallelism)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			events, err := c.client.GetRepoEvents(ctx, c.state(repo), repo, limit)
			if err != nil {
				// Transient per spec: this repo contributes nothing this pass.
				slog.Warn("repo feed fetch failed", "repo", repo, "error", err)
				return nil
			}
			mu.Lock()
			all = append(all, events...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	c.noteSuggested()
	return all
}

// state returns the endpoint's conditional-request state, creating it on
// first use. Safe for the concurrent fan-out goroutines; each returned
// PageState is still touched by exactly one goroutine per pass.
func (c *Coordinator) state(key string) *github.PageState {
	c.statesMu.Lock()
	defer c.statesMu.Unlock()
	st, ok := c.states[key]
	if !ok {
		st = &github.PageState{}
		c.states[key] = st
	}
	return st
}

// noteSuggested records the largest server-suggested poll interval seen,
// so the next scheduled tick can honor it.
func (c *Coordinator) noteSuggested() {
	c.statesMu.Lock()
	defer c.statesMu.Unlock()

	var max time.Duration
	for _, st := range c.states {
		if st.PollInterval > max {
			max = st.PollInterval
		}
	}
	c.suggested.Store(int64(max))
}

// tickInterval is the configured interval, stretched to any larger
// server-suggested one.
func (c *Coordinator) tickInterval() time.Duration {
	d := c.interval
	if s := time.Duration(c.suggested.Load()); s > d {
		d = s
	}
	return d
}

// Run collects immediately, then on every tick until ctx is cancelled.
// A failing pass pauses ingestion until the next tick; it never stops the
// loop.
func (c *Coordinator) Run(ctx context.Context) {
	slog.Info("ingestion coordinator starting", "interval", c.interval, "repos", len(c.repos))

	if _, err := c.CollectNow(ctx, 0, nil); err != nil {
		slog.Error("initial collection failed", "error", err)
	}

	for {
		timer := time.NewTimer(c.tickInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("ingestion coordinator stopped")
			return
		case <-timer.C:
			if _, err := c.CollectNow(ctx, 0, nil); err != nil {
				slog.Error("scheduled collection failed", "error", err)
			}
		}
	}
}

// Status describes the most recent collection pass.
type Status struct {
	LastRun      time.Time `json:"lastRun"`
	LastStatus   string    `json:"lastStatus"`
	LastInserted int       `json:"lastInserted"`
}

// Status returns the most recent pass outcome, for the health endpoint.
func (c *Coordinator) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return Status{
		LastRun:      c.lastRun,
		LastStatus:   c.lastStatus,
		LastInserted: c.lastInserted,
	}
}
