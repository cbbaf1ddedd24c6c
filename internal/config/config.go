// Package config loads application configuration from the environment.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds application configuration.
type Config struct {
	Host     string `env:"API_HOST,default=0.0.0.0"`
	Port     string `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	// GitHubToken is optional: unauthenticated requests work against the
	// lower upstream quota.
	GitHubToken string `env:"GITHUB_TOKEN"`
	UserAgent   string `env:"USER_AGENT,default=repopulse"`

	PollInterval      time.Duration `env:"POLL_INTERVAL,default=60s"`
	MaxEventsPerFetch int           `env:"MAX_EVENTS_PER_FETCH,default=100"`

	// TargetRepositories is a comma-separated "owner/name" list. Empty
	// means the global public feed.
	TargetRepositories string `env:"TARGET_REPOSITORIES"`
}

// Load reads configuration from environment variables.
// Returns an error if required variables are missing.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lu envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &cfg, lu); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if cfg.PollInterval < time.Second {
		return nil, fmt.Errorf("POLL_INTERVAL must be at least 1s, got %s", cfg.PollInterval)
	}
	if cfg.MaxEventsPerFetch < 0 {
		return nil, fmt.Errorf("MAX_EVENTS_PER_FETCH must not be negative, got %d", cfg.MaxEventsPerFetch)
	}
	return &cfg, nil
}

// Repos splits the configured target repository list.
func (c *Config) Repos() []string {
	if c.TargetRepositories == "" {
		return nil
	}
	var repos []string
	for _, r := range strings.Split(c.TargetRepositories, ",") {
		if r = strings.TrimSpace(r); r != "" {
			repos = append(repos, r)
		}
	}
	return repos
}

// Addr is the host:port the HTTP server binds.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
