// Package monitor runs process-local per-repository polling workers with
// bounded in-memory buffers. Monitors are independent of ingestion: they
// keep their own conditional-request state and never touch the event
// store.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skridlevsky/repopulse/internal/event"
	"github.com/skridlevsky/repopulse/internal/github"
)

const (
	// bufferCap bounds each monitor's buffer; older entries fall off.
	bufferCap = 1000

	// minInterval floors the polling cadence a caller may request.
	minInterval = 5 * time.Second

	// listPreview is how many recent summaries List includes per monitor.
	listPreview = 5
)

// ErrNotFound is returned for an unknown monitor id.
var ErrNotFound = errors.New("monitor not found")

// Info describes one active monitor. The interval is reported in whole
// seconds, matching the unit the start request takes.
type Info struct {
	ID              string          `json:"id"`
	Repo            string          `json:"repo"`
	Kinds           []event.Kind    `json:"kinds"`
	IntervalSeconds int             `json:"intervalSeconds"`
	BufferSize      int             `json:"bufferSize"`
	StartedAt       time.Time       `json:"startedAt"`
	Recent          []event.Summary `json:"recent"`
}

// monitor is the registry-internal record. The worker goroutine owns the
// fetch state; the buffer is shared with API readers under mu.
type monitor struct {
	id        string
	repo      string
	kinds     map[event.Kind]struct{} // empty means all monitored kinds
	kindList  []event.Kind
	interval  time.Duration
	startedAt time.Time
	cancel    context.CancelFunc

	mu     sync.Mutex
	buffer []event.Summary // newest first
}

// Registry owns the set of live monitors. All methods are safe for
// concurrent use.
type Registry struct {
	client *github.Client
	limit  int

	mu       sync.RWMutex
	monitors map[string]*monitor
}

// NewRegistry creates a monitor registry over the given client. limit
// caps events taken per poll (0 means no cap).
func NewRegistry(client *github.Client, limit int) *Registry {
	return &Registry{
		client:   client,
		limit:    limit,
		monitors: make(map[string]*monitor),
	}
}

// Start spawns a polling worker for the repo and returns its monitor id.
// kinds narrows what the buffer keeps (nil or empty keeps every monitored
// kind); interval is floored to five seconds. The worker polls once
// immediately, then on every tick until stopped.
func (r *Registry) Start(ctx context.Context, repo string, kinds []event.Kind, interval time.Duration) (string, error) {
	if repo == "" {
		return "", errors.New("repo is required")
	}
	if interval < minInterval {
		interval = minInterval
	}

	kindSet := make(map[event.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		if event.Monitored(string(k)) {
			kindSet[k] = struct{}{}
		}
	}

	workerCtx, cancel := context.WithCancel(ctx)
	m := &monitor{
		id:        uuid.NewString(),
		repo:      repo,
		kinds:     kindSet,
		kindList:  kinds,
		interval:  interval,
		startedAt: time.Now().UTC(),
		cancel:    cancel,
	}

	r.mu.Lock()
	r.monitors[m.id] = m
	r.mu.Unlock()

	go r.run(workerCtx, m)

	slog.Info("monitor started", "id", m.id, "repo", repo, "interval", interval)
	return m.id, nil
}

// Stop cancels the monitor's worker and removes its record. In-flight
// HTTP may complete; the worker exits at its next scheduling point.
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	m, ok := r.monitors[id]
	if ok {
		delete(r.monitors, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	m.cancel()
	slog.Info("monitor stopped", "id", id, "repo", m.repo)
	return nil
}

// StopAll cancels every worker, for process shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.monitors {
		m.cancel()
		delete(r.monitors, id)
	}
}

// List returns each active monitor's description with up to five most
// recent buffered summaries.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.monitors))
	for _, m := range r.monitors {
		infos = append(infos, m.info())
	}
	return infos
}

// Events returns the monitor's most recent buffered summaries, newest
// first. limit is clamped to the buffer capacity; zero or negative means
// the full buffer.
func (r *Registry) Events(id string, limit int) ([]event.Summary, error) {
	m, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > bufferCap {
		limit = bufferCap
	}
	return m.snapshot(limit), nil
}

// Grouped returns the monitor's buffer grouped by kind.
func (r *Registry) Grouped(id string) (map[event.Kind][]event.Summary, error) {
	m, err := r.get(id)
	if err != nil {
		return nil, err
	}
	grouped := make(map[event.Kind][]event.Summary)
	for _, s := range m.snapshot(bufferCap) {
		grouped[s.Kind] = append(grouped[s.Kind], s)
	}
	return grouped, nil
}

func (r *Registry) get(id string) (*monitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// run is the worker loop. The conditional-request state is local to the
// goroutine; only the buffer crosses into the registry's readers.
func (r *Registry) run(ctx context.Context, m *monitor) {
	st := &github.PageState{}

	r.poll(ctx, m, st)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx, m, st)
		}
	}
}

func (r *Registry) poll(ctx context.Context, m *monitor, st *github.PageState) {
	events, err := r.client.GetRepoEvents(ctx, st, m.repo, r.limit)
	if err != nil {
		// Transient; the buffer keeps what it has until the next tick.
		slog.Warn("monitor poll failed", "id", m.id, "repo", m.repo, "error", err)
		return
	}
	if len(events) == 0 {
		return
	}

	fresh := make([]event.Summary, 0, len(events))
	for _, e := range events {
		if len(m.kinds) > 0 {
			if _, ok := m.kinds[e.Kind]; !ok {
				continue
			}
		}
		fresh = append(fresh, e.Summary())
	}
	if len(fresh) == 0 {
		return
	}
	m.push(fresh)
}

// push prepends fresh summaries and truncates the oldest past capacity.
func (m *monitor) push(fresh []event.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = append(fresh, m.buffer...)
	if len(m.buffer) > bufferCap {
		m.buffer = m.buffer[:bufferCap]
	}
}

// snapshot copies up to limit entries so readers never alias the buffer.
func (m *monitor) snapshot(limit int) []event.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.buffer) {
		limit = len(m.buffer)
	}
	out := make([]event.Summary, limit)
	copy(out, m.buffer[:limit])
	return out
}

func (m *monitor) info() Info {
	m.mu.Lock()
	size := len(m.buffer)
	m.mu.Unlock()

	return Info{
		ID:              m.id,
		Repo:            m.repo,
		Kinds:           m.kindList,
		IntervalSeconds: int(m.interval / time.Second),
		BufferSize:      size,
		StartedAt:       m.startedAt,
		Recent:          m.snapshot(listPreview),
	}
}
