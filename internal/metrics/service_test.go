package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skridlevsky/repopulse/internal/event"
	"github.com/skridlevsky/repopulse/internal/store"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *store.Memory) {
	mem := store.NewMemory()
	mem.Now = func() time.Time { return testNow }
	svc := NewService(mem)
	svc.now = func() time.Time { return testNow }
	return svc, mem
}

func insert(t *testing.T, mem *store.Memory, events ...*event.Event) {
	t.Helper()
	_, err := mem.InsertMany(context.Background(), events)
	require.NoError(t, err)
}

func mkEvent(id string, kind event.Kind, repo string, createdAt time.Time, payload string) *event.Event {
	if payload == "" {
		payload = "{}"
	}
	return &event.Event{
		ID:        id,
		Kind:      kind,
		Repo:      repo,
		Actor:     "octocat",
		CreatedAt: createdAt,
		Payload:   json.RawMessage(payload),
	}
}

func TestEventCountsRejectsBadOffset(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.EventCounts(context.Background(), 0, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.EventCounts(context.Background(), -5, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEventCountsMinimalWindow(t *testing.T) {
	svc, mem := newTestService()
	insert(t, mem, mkEvent("1", event.KindPush, "o/r", testNow.Add(-30*time.Second), ""))

	counts, err := svc.EventCounts(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Total)
	assert.False(t, counts.FellBackToAlltime)
	assert.Len(t, counts.Counts, len(event.Kinds))
}

func TestEventCountsFallsBackToAllTime(t *testing.T) {
	svc, mem := newTestService()
	insert(t, mem, mkEvent("1", event.KindWatch, "o/r", testNow.Add(-48*time.Hour), ""))

	counts, err := svc.EventCounts(context.Background(), 60, "")
	require.NoError(t, err)
	assert.True(t, counts.FellBackToAlltime)
	assert.Equal(t, 1, counts.Total)
	assert.Equal(t, 1, counts.Counts[event.KindWatch])
}

func TestEventCountsEmptyStoreNoFallback(t *testing.T) {
	svc, _ := newTestService()

	counts, err := svc.EventCounts(context.Background(), 60, "")
	require.NoError(t, err)
	assert.False(t, counts.FellBackToAlltime)
	assert.Zero(t, counts.Total)
}

func TestAvgPRInterval(t *testing.T) {
	svc, mem := newTestService()
	t0 := testNow.Add(-10 * time.Hour)
	insert(t, mem,
		mkEvent("1", event.KindPullRequest, "o/r", t0, `{"action":"opened"}`),
		mkEvent("2", event.KindPullRequest, "o/r", t0.Add(2*time.Hour), `{"action":"opened"}`),
		mkEvent("3", event.KindPullRequest, "o/r", t0.Add(5*time.Hour), `{"action":"opened"}`),
	)

	stats, err := svc.AvgPRInterval(context.Background(), "o/r")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.PRCount)
	assert.False(t, stats.Insufficient)
	assert.Equal(t, 9000.0, stats.AvgSeconds)
	assert.Equal(t, 7200.0, stats.MinSeconds)
	assert.Equal(t, 10800.0, stats.MaxSeconds)
	assert.InDelta(t, 2.5, stats.AvgHours, 0.0001)
}

func TestAvgPRIntervalInsufficientData(t *testing.T) {
	svc, mem := newTestService()
	insert(t, mem, mkEvent("1", event.KindPullRequest, "o/r", testNow.Add(-time.Hour), `{"action":"opened"}`))

	stats, err := svc.AvgPRInterval(context.Background(), "o/r")
	require.NoError(t, err)
	assert.True(t, stats.Insufficient)
	assert.Equal(t, 1, stats.PRCount)
	assert.Zero(t, stats.AvgSeconds)

	_, err = svc.AvgPRInterval(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPRMergeTime(t *testing.T) {
	svc, mem := newTestService()
	t0 := testNow.Add(-5 * time.Hour)
	insert(t, mem,
		mkEvent("1", event.KindPullRequest, "o/r", t0, `{"action":"opened","pull_request":{"number":1}}`),
		mkEvent("2", event.KindPullRequest, "o/r", t0.Add(time.Hour), `{"action":"closed","pull_request":{"number":1,"merged":true}}`),
		mkEvent("3", event.KindPullRequest, "o/r", t0, `{"action":"opened","pull_request":{"number":2}}`),
		mkEvent("4", event.KindPullRequest, "o/r", t0.Add(3*time.Hour), `{"action":"closed","pull_request":{"number":2,"merged":true}}`),
	)

	stats, err := svc.PRMergeTime(context.Background(), "o/r", 24)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 7200.0, stats.AvgSeconds)
	assert.Equal(t, 7200.0, stats.P50)
}

func TestIssueFirstResponse(t *testing.T) {
	svc, mem := newTestService()
	t0 := testNow.Add(-2 * time.Hour)
	insert(t, mem,
		mkEvent("1", event.KindIssues, "o/r", t0, `{"action":"opened","issue":{"number":5}}`),
		mkEvent("2", event.KindIssueComment, "o/r", t0.Add(15*time.Minute), `{"action":"created","issue":{"number":5}}`),
	)

	stats, err := svc.IssueFirstResponse(context.Background(), "o/r", 24)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 900.0, stats.AvgSeconds)
}

func TestRepoActivityDisclosesFallback(t *testing.T) {
	svc, mem := newTestService()
	insert(t, mem, mkEvent("1", event.KindPush, "o/r", testNow.Add(-72*time.Hour), ""))

	report, err := svc.RepoActivity(context.Background(), "o/r", 24)
	require.NoError(t, err)
	assert.True(t, report.AllTime)
	assert.Equal(t, 1, report.Total)
}

func TestTrendingValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Trending(context.Background(), 0, 10)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTimeseriesValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Timeseries(context.Background(), 0, 60, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Timeseries(context.Background(), 24, 0, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStarsReleasesPushes(t *testing.T) {
	svc, mem := newTestService()
	insert(t, mem,
		mkEvent("1", event.KindWatch, "o/r", testNow.Add(-time.Hour), ""),
		mkEvent("2", event.KindWatch, "o/r", testNow.Add(-time.Hour), ""),
		mkEvent("3", event.KindRelease, "o/r", testNow.Add(-time.Hour), `{"action":"published"}`),
		mkEvent("4", event.KindPush, "o/r", testNow.Add(-time.Hour), `{"size":4}`),
		mkEvent("5", event.KindPush, "o/r", testNow.Add(-time.Hour), `{"size":1}`),
	)

	ctx := context.Background()

	stars, err := svc.Stars(ctx, "o/r", 24)
	require.NoError(t, err)
	assert.Equal(t, 2, stars.Count)

	releases, err := svc.Releases(ctx, "o/r", 24)
	require.NoError(t, err)
	assert.Equal(t, 1, releases.Count)

	pushes, err := svc.Pushes(ctx, "o/r", 24)
	require.NoError(t, err)
	assert.Equal(t, 2, pushes.PushCount)
	assert.Equal(t, 5, pushes.TotalCommits)
}

func TestRepoHealth(t *testing.T) {
	svc, mem := newTestService()
	// 24 activity events and 24 review comments over the default week.
	var events []*event.Event
	for i := 0; i < 24; i++ {
		events = append(events,
			mkEvent(fmt.Sprintf("p%d", i), event.KindPush, "o/r", testNow.Add(-time.Duration(i)*time.Hour), ""),
			mkEvent(fmt.Sprintf("c%d", i), event.KindIssueComment, "o/r", testNow.Add(-time.Duration(i)*time.Hour), ""),
		)
	}
	insert(t, mem, events...)

	score, err := svc.RepoHealth(context.Background(), "o/r", 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultHealthWindowHours, score.Hours)
	assert.Equal(t, 48, score.TotalEvents)
	// activity: 24/168 per hour × 10 ≈ 1.43
	assert.InDelta(t, 1.4286, score.Activity, 0.001)
	// collaboration: 100 × 24/48 = 50
	assert.InDelta(t, 50.0, score.Collaboration, 0.001)
	assert.Zero(t, score.Maintenance)
	assert.Zero(t, score.Security)
	assert.InDelta(t, 0.30*score.Activity+0.25*score.Collaboration, score.Overall, 0.001)

	_, err = svc.RepoHealth(context.Background(), "", 24)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAnomaliesSpikeDetection(t *testing.T) {
	svc, mem := newTestService()

	// Hourly PushEvent counts over six buckets: [1,1,1,1,1,20].
	// mean 4.17, stdev ~7.76, spike threshold ~19.7; the last bucket is a
	// medium spike (20 < mean+3σ ≈ 27.4).
	var events []*event.Event
	id := 0
	for bucket := 0; bucket < 6; bucket++ {
		n := 1
		if bucket == 5 {
			n = 20
		}
		start := testNow.Add(-6 * time.Hour).Add(time.Duration(bucket) * time.Hour)
		for i := 0; i < n; i++ {
			id++
			events = append(events, mkEvent(fmt.Sprintf("e%d", id), event.KindPush, "o/r", start.Add(time.Minute), ""))
		}
	}
	insert(t, mem, events...)

	anomalies, err := svc.Anomalies(context.Background(), "o/r", 6)
	require.NoError(t, err)

	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, event.KindPush, a.Kind)
	assert.Equal(t, "spike", a.Type)
	assert.Equal(t, "medium", a.Severity)
	assert.Equal(t, 20, a.Value)
	assert.Equal(t, 0.95, a.Confidence)
	assert.InDelta(t, 19.68, a.Threshold, 0.05)
}

func TestAnomaliesNeedThreeBuckets(t *testing.T) {
	svc, mem := newTestService()
	insert(t, mem, mkEvent("1", event.KindPush, "o/r", testNow.Add(-30*time.Minute), ""))

	anomalies, err := svc.Anomalies(context.Background(), "o/r", 2)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestAnomaliesValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Anomalies(context.Background(), "", 6)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Anomalies(context.Background(), "o/r", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
