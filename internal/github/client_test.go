package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventsPage = `[
	{"id":"1","type":"PushEvent","actor":{"login":"alice"},"repo":{"name":"o/r"},"payload":{"size":2},"created_at":"2026-08-20T10:00:00Z"},
	{"id":"2","type":"FollowEvent","actor":{"login":"bob"},"repo":{"name":"o/r"},"payload":{},"created_at":"2026-08-20T10:01:00Z"},
	{"id":"3","type":"GollumEvent","actor":{"login":"carol"},"repo":{"name":"o/r"},"payload":{},"created_at":"2026-08-20T10:02:00Z"},
	{"id":"4","type":"WatchEvent","actor":{"login":""},"repo":{"name":"o/r"},"payload":{},"created_at":"2026-08-20T10:03:00Z"}
]`

func newTestClient(url string) *Client {
	c := NewClient("test-token", "repopulse-test")
	c.BaseURL = url
	return c
}

func TestFetchFiltersAndCachesETag(t *testing.T) {
	var requests []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Header.Clone())
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("X-Poll-Interval", "60")
		w.Write([]byte(eventsPage))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	st := &PageState{}

	events, err := client.GetGlobalEvents(context.Background(), st, 0)
	require.NoError(t, err)

	// FollowEvent is outside the monitored set; the actorless WatchEvent
	// is malformed. Both are dropped, the rest of the page proceeds.
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].ID)
	assert.Equal(t, "3", events[1].ID)

	assert.Equal(t, `"abc"`, st.ETag)
	assert.Equal(t, time.Minute, st.PollInterval)

	// Second fetch sends the cached validator and gets the 304 fast path.
	events, err = client.GetGlobalEvents(context.Background(), st, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.Len(t, requests, 2)
	assert.Empty(t, requests[0].Get("If-None-Match"))
	assert.Equal(t, `"abc"`, requests[1].Get("If-None-Match"))
	assert.Equal(t, "Bearer test-token", requests[1].Get("Authorization"))
	assert.Equal(t, "repopulse-test", requests[1].Get("User-Agent"))
}

func TestFetchLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(eventsPage))
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).GetGlobalEvents(context.Background(), &PageState{}, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].ID)
}

func TestFetchRepoEventsPath(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetRepoEvents(context.Background(), &PageState{}, "octo/repo", 0)
	require.NoError(t, err)
	assert.Equal(t, "/repos/octo/repo/events", path)
}

func TestFetchRateLimited(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reset instant already passed: no sleep, empty result.
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(-time.Second).Unix(), 10))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	client.now = func() time.Time { return now }

	events, err := client.GetGlobalEvents(context.Background(), &PageState{}, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchQuotaExhausted403(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(-time.Minute).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	client.now = func() time.Time { return now }

	events, err := client.GetGlobalEvents(context.Background(), &PageState{}, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := &PageState{ETag: `"kept"`}
	_, err := newTestClient(srv.URL).GetGlobalEvents(context.Background(), st, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	// Cached validators survive a transient failure.
	assert.Equal(t, `"kept"`, st.ETag)
}

func TestWaitForResetCancellable(t *testing.T) {
	client := NewClient("", "test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	headers := http.Header{}
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))

	err := client.waitForReset(ctx, headers)
	assert.ErrorIs(t, err, context.Canceled)
}
