// Package github fetches public activity from the GitHub Events API using
// conditional requests. The package is a stateless function library: the
// conditional-request state (ETag, Last-Modified, suggested poll interval)
// lives in a caller-owned PageState, so the ingestion coordinator and each
// live monitor keep their own.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/skridlevsky/repopulse/internal/event"
)

const (
	defaultBaseURL = "https://api.github.com"
	acceptHeader   = "application/vnd.github+json"
	apiVersion     = "2022-11-28"
)

// PageState is the conditional-request state for one endpoint. Zero value
// means "never fetched". Lost on restart; deduplication by event id
// absorbs the resulting replays.
type PageState struct {
	ETag         string
	LastModified string
	PollInterval time.Duration // server-suggested via X-Poll-Interval
}

// Client performs conditional GETs against the events endpoints.
// It never retries and never writes to the store; both are the caller's
// decisions.
type Client struct {
	token     string
	userAgent string

	// BaseURL is the API root. Tests point it at a fake server.
	BaseURL string

	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a GitHub events client. token may be empty
// (unauthenticated requests get the lower upstream quota).
func NewClient(token, userAgent string) *Client {
	return &Client{
		token:     token,
		userAgent: userAgent,
		BaseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// GetGlobalEvents fetches the public global feed. Only events whose kind
// is monitored are returned, at most limit of them (0 means no cap).
func (c *Client) GetGlobalEvents(ctx context.Context, st *PageState, limit int) ([]*event.Event, error) {
	return c.fetchEvents(ctx, c.BaseURL+"/events", st, limit)
}

// GetRepoEvents fetches one repository's feed. repo is "owner/name".
func (c *Client) GetRepoEvents(ctx context.Context, st *PageState, repo string, limit int) ([]*event.Event, error) {
	return c.fetchEvents(ctx, fmt.Sprintf("%s/repos/%s/events", c.BaseURL, repo), st, limit)
}

// fetchEvents performs one conditional GET:
//
//	304                    — empty result, cached headers untouched
//	429 / 403 exhausted    — sleep until X-RateLimit-Reset, then empty
//	200                    — update cached headers, filter kinds, map to records
//	anything else          — transient: empty result plus the error
func (c *Client) fetchEvents(ctx context.Context, url string, st *PageState, limit int) ([]*event.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if st.ETag != "" {
		req.Header.Set("If-None-Match", st.ETag)
	}
	if st.LastModified != "" {
		req.Header.Set("If-Modified-Since", st.LastModified)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, nil

	case rateLimited(resp):
		return nil, c.waitForReset(ctx, resp.Header)

	case resp.StatusCode == http.StatusOK:
		return c.decodeEvents(resp, st, limit)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github API error %d: %s", resp.StatusCode, string(body))
	}
}

// rateLimited reports quota exhaustion: a 429, or a 403 whose remaining
// quota header reads zero.
func rateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden &&
		resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// waitForReset sleeps until the instant in X-RateLimit-Reset, then returns
// nil so the caller retries on its next schedule. Only this goroutine
// blocks; the sleep is cancellable.
func (c *Client) waitForReset(ctx context.Context, headers http.Header) error {
	resetUnix, err := strconv.ParseInt(headers.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return nil
	}
	wait := time.Unix(resetUnix, 0).Sub(c.now())
	if wait <= 0 {
		return nil
	}

	slog.Warn("github rate limit exhausted, waiting for reset", "wait", wait.Round(time.Second))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) decodeEvents(resp *http.Response, st *PageState, limit int) ([]*event.Event, error) {
	if etag := resp.Header.Get("ETag"); etag != "" {
		st.ETag = etag
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		st.LastModified = lm
	}
	if secs, err := strconv.Atoi(resp.Header.Get("X-Poll-Interval")); err == nil && secs > 0 {
		st.PollInterval = time.Duration(secs) * time.Second
	}

	var raws []event.Raw
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, fmt.Errorf("failed to decode events response: %w", err)
	}

	var events []*event.Event
	for i := range raws {
		if !event.Monitored(raws[i].Type) {
			continue
		}
		e, err := event.FromRaw(&raws[i])
		if err != nil {
			// Malformed events are skipped; the rest of the batch proceeds.
			slog.Debug("skipping malformed event", "error", err)
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}
