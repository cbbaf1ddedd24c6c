package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawEvent() *Raw {
	r := &Raw{
		ID:        "123",
		Type:      "PushEvent",
		Payload:   []byte(`{"size":3}`),
		CreatedAt: "2026-08-20T10:00:00Z",
	}
	r.Actor.Login = "octocat"
	r.Repo.Name = "octo/repo"
	return r
}

func TestFromRaw(t *testing.T) {
	e, err := FromRaw(rawEvent())
	require.NoError(t, err)

	assert.Equal(t, "123", e.ID)
	assert.Equal(t, KindPush, e.Kind)
	assert.Equal(t, "octo/repo", e.Repo)
	assert.Equal(t, "octocat", e.Actor)
	assert.Equal(t, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), e.CreatedAt)
	assert.JSONEq(t, `{"size":3}`, string(e.Payload))
	assert.True(t, e.CollectedAt.IsZero(), "collected_at is set by the store, not the constructor")
}

func TestFromRawMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Raw)
	}{
		{"missing id", func(r *Raw) { r.ID = "" }},
		{"missing type", func(r *Raw) { r.Type = "" }},
		{"missing repo name", func(r *Raw) { r.Repo.Name = "" }},
		{"missing actor login", func(r *Raw) { r.Actor.Login = "" }},
		{"missing created_at", func(r *Raw) { r.CreatedAt = "" }},
		{"malformed created_at", func(r *Raw) { r.CreatedAt = "yesterday" }},
		{"unmonitored type", func(r *Raw) { r.Type = "FollowEvent" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := rawEvent()
			tc.mutate(r)
			_, err := FromRaw(r)
			assert.Error(t, err)
		})
	}
}

func TestFromRawEmptyPayload(t *testing.T) {
	r := rawEvent()
	r.Payload = nil
	e, err := FromRaw(r)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(e.Payload))
}

func TestMonitored(t *testing.T) {
	assert.True(t, Monitored("PushEvent"))
	assert.True(t, Monitored("GollumEvent"))
	assert.False(t, Monitored("FollowEvent"))
	assert.False(t, Monitored(""))
}

func TestKindsCoverZeroCounts(t *testing.T) {
	counts := ZeroCounts()
	require.Len(t, counts, len(Kinds))
	for _, k := range Kinds {
		v, ok := counts[k]
		assert.True(t, ok)
		assert.Zero(t, v)
	}
}

func TestSummary(t *testing.T) {
	e, err := FromRaw(rawEvent())
	require.NoError(t, err)

	s := e.Summary()
	assert.Equal(t, e.ID, s.ID)
	assert.Equal(t, e.Kind, s.Kind)
	assert.Equal(t, e.Repo, s.Repo)
	assert.Equal(t, e.Actor, s.Actor)
	assert.Equal(t, e.CreatedAt, s.CreatedAt)
}
