package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL": "postgres://localhost/repopulse",
	}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.GitHubToken)
	assert.Equal(t, "repopulse", cfg.UserAgent)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 100, cfg.MaxEventsPerFetch)
	assert.Nil(t, cfg.Repos())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL":         "postgres://localhost/repopulse",
		"API_HOST":             "127.0.0.1",
		"API_PORT":             "9090",
		"GITHUB_TOKEN":         "ghp_test",
		"POLL_INTERVAL":        "30s",
		"MAX_EVENTS_PER_FETCH": "50",
		"TARGET_REPOSITORIES":  "o/one, o/two ,,o/three",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "ghp_test", cfg.GitHubToken)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 50, cfg.MaxEventsPerFetch)
	assert.Equal(t, []string{"o/one", "o/two", "o/three"}, cfg.Repos())
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL":  "postgres://localhost/repopulse",
		"POLL_INTERVAL": "100ms",
	}))
	assert.Error(t, err)

	_, err = load(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL":         "postgres://localhost/repopulse",
		"MAX_EVENTS_PER_FETCH": "-1",
	}))
	assert.Error(t, err)
}
