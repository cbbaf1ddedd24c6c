package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skridlevsky/repopulse/internal/event"
)

// Postgres is the durable Store implementation.
type Postgres struct {
	pool *pgxpool.Pool

	// Now is the clock used for timeseries tiling. Tests override it.
	Now func() time.Time
}

// NewPostgres creates a Postgres-backed event store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, Now: time.Now}
}

// InsertMany appends a batch of events. Duplicate ids are skipped by
// ON CONFLICT, so the call is idempotent under retry. collected_at is set
// here, not by the fetcher.
func (s *Postgres) InsertMany(ctx context.Context, events []*event.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO events (id, kind, repo, actor, created_at, payload, collected_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (id) DO NOTHING
		`, e.ID, string(e.Kind), e.Repo, e.Actor, e.CreatedAt, e.Payload)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range events {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert event batch: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *Postgres) CountByKind(ctx context.Context, since time.Time, repo string) (map[event.Kind]int, error) {
	query := `SELECT kind, COUNT(*) FROM events WHERE created_at >= $1`
	args := []interface{}{since}
	if repo != "" {
		query += ` AND repo = $2`
		args = append(args, repo)
	}
	query += ` GROUP BY kind`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[event.Kind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		counts[event.Kind(kind)] = count
	}
	return counts, rows.Err()
}

func (s *Postgres) TotalCount(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (s *Postgres) PROpenedTimestamps(ctx context.Context, repo string) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT created_at FROM events
		WHERE repo = $1 AND kind = 'PullRequestEvent' AND payload->>'action' = 'opened'
		ORDER BY created_at ASC
	`, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to query PR opened timestamps: %w", err)
	}
	defer rows.Close()

	var timestamps []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan timestamp: %w", err)
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps, rows.Err()
}

func (s *Postgres) PRMergeDurations(ctx context.Context, repo string, since time.Time) ([]Duration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT created_at,
		       COALESCE(payload->'pull_request'->>'number', payload->>'number', ''),
		       COALESCE(payload->>'action', ''),
		       COALESCE(payload->'pull_request'->>'merged', 'false')
		FROM events
		WHERE repo = $1 AND kind = 'PullRequestEvent' AND created_at >= $2
	`, repo, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query PR events: %w", err)
	}
	defer rows.Close()

	var prRows []prRow
	for rows.Next() {
		var createdAt time.Time
		var number, action, merged string
		if err := rows.Scan(&createdAt, &number, &action, &merged); err != nil {
			return nil, fmt.Errorf("failed to scan PR event: %w", err)
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			continue // payload without a usable PR number
		}
		prRows = append(prRows, prRow{
			Number:    n,
			Action:    action,
			Merged:    merged == "true",
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pairMergeDurations(prRows), nil
}

func (s *Postgres) IssueFirstResponseDurations(ctx context.Context, repo string, since time.Time) ([]Duration, error) {
	opens, err := s.issueRows(ctx, repo, since, `kind = 'IssuesEvent' AND payload->>'action' = 'opened'`)
	if err != nil {
		return nil, err
	}
	comments, err := s.issueRows(ctx, repo, since, `kind = 'IssueCommentEvent'`)
	if err != nil {
		return nil, err
	}
	return pairFirstResponses(opens, comments), nil
}

func (s *Postgres) issueRows(ctx context.Context, repo string, since time.Time, cond string) ([]numberedRow, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT created_at, COALESCE(payload->'issue'->>'number', '')
		FROM events
		WHERE repo = $1 AND created_at >= $2 AND %s
	`, cond), repo, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue events: %w", err)
	}
	defer rows.Close()

	var out []numberedRow
	for rows.Next() {
		var createdAt time.Time
		var number string
		if err := rows.Scan(&createdAt, &number); err != nil {
			return nil, fmt.Errorf("failed to scan issue event: %w", err)
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			continue
		}
		out = append(out, numberedRow{Number: n, CreatedAt: createdAt})
	}
	return out, rows.Err()
}

// RepoActivity aggregates the repo's window. When the window holds nothing
// the all-time aggregation for the repo is returned instead, flagged.
func (s *Postgres) RepoActivity(ctx context.Context, repo string, since time.Time) (*RepoActivity, error) {
	activity, total, err := s.repoActivitySince(ctx, repo, since)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		return &RepoActivity{Activity: activity, Total: total}, nil
	}

	activity, total, err = s.repoActivitySince(ctx, repo, time.Time{})
	if err != nil {
		return nil, err
	}
	return &RepoActivity{Activity: activity, Total: total, AllTime: total > 0}, nil
}

func (s *Postgres) repoActivitySince(ctx context.Context, repo string, since time.Time) (map[event.Kind]ActivityStat, int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, COUNT(*), MIN(created_at), MAX(created_at)
		FROM events
		WHERE repo = $1 AND created_at >= $2
		GROUP BY kind
	`, repo, since)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query repo activity: %w", err)
	}
	defer rows.Close()

	activity := make(map[event.Kind]ActivityStat)
	total := 0
	for rows.Next() {
		var kind string
		var stat ActivityStat
		if err := rows.Scan(&kind, &stat.Count, &stat.FirstTS, &stat.LastTS); err != nil {
			return nil, 0, fmt.Errorf("failed to scan repo activity: %w", err)
		}
		activity[event.Kind(kind)] = stat
		total += stat.Count
	}
	return activity, total, rows.Err()
}

func (s *Postgres) Trending(ctx context.Context, since time.Time, limit int) ([]TrendingRepo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT repo, kind, COUNT(*), MIN(created_at), MAX(created_at)
		FROM events
		WHERE created_at >= $1 AND repo <> ''
		GROUP BY repo, kind
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending repos: %w", err)
	}
	defer rows.Close()

	byRepo := make(map[string]*TrendingRepo)
	for rows.Next() {
		var repo, kind string
		var count int
		var first, last time.Time
		if err := rows.Scan(&repo, &kind, &count, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan trending row: %w", err)
		}
		tr, ok := byRepo[repo]
		if !ok {
			tr = &TrendingRepo{Repo: repo, Counts: event.ZeroCounts(), FirstTS: first, LastTS: last}
			byRepo[repo] = tr
		}
		tr.Counts[event.Kind(kind)] = count
		tr.Total += count
		if first.Before(tr.FirstTS) {
			tr.FirstTS = first
		}
		if last.After(tr.LastTS) {
			tr.LastTS = last
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankTrending(byRepo, limit), nil
}

func (s *Postgres) Timeseries(ctx context.Context, since time.Time, width time.Duration, repo string) ([]Bucket, error) {
	now := s.Now().UTC()

	query := `SELECT kind, created_at FROM events WHERE created_at >= $1 AND created_at < $2`
	args := []interface{}{since, now}
	if repo != "" {
		query += ` AND repo = $3`
		args = append(args, repo)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeseries events: %w", err)
	}
	defer rows.Close()

	var events []kindTime
	for rows.Next() {
		var kind string
		var createdAt time.Time
		if err := rows.Scan(&kind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan timeseries event: %w", err)
		}
		events = append(events, kindTime{Kind: event.Kind(kind), CreatedAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tileBuckets(since, now, width, events), nil
}

func (s *Postgres) PushCommitSum(ctx context.Context, since time.Time, repo string) (int, error) {
	query := `
		SELECT COALESCE(SUM((payload->>'size')::int), 0) FROM events
		WHERE kind = 'PushEvent' AND created_at >= $1`
	args := []interface{}{since}
	if repo != "" {
		query += ` AND repo = $2`
		args = append(args, repo)
	}

	var sum int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum push sizes: %w", err)
	}
	return sum, nil
}
