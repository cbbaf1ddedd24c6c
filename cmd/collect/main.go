// Command collect performs one ingestion pass and exits, for cron-style
// collection without the long-running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/skridlevsky/repopulse/internal/config"
	"github.com/skridlevsky/repopulse/internal/db"
	"github.com/skridlevsky/repopulse/internal/github"
	"github.com/skridlevsky/repopulse/internal/ingest"
	"github.com/skridlevsky/repopulse/internal/store"
)

func main() {
	limit := flag.Int("limit", 0, "override the configured per-fetch event cap for this pass")
	repoList := flag.String("repos", "", "comma-separated owner/name list overriding the configured targets")
	flag.Parse()

	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	database, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, database.Pool()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	client := github.NewClient(cfg.GitHubToken, cfg.UserAgent)
	coordinator := ingest.NewCoordinator(client, store.NewPostgres(database.Pool()), cfg.PollInterval, cfg.MaxEventsPerFetch, cfg.Repos())

	inserted, err := coordinator.CollectNow(ctx, *limit, splitRepos(*repoList))
	if err != nil {
		slog.Error("collection failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("inserted %d events\n", inserted)
}

func splitRepos(list string) []string {
	if list == "" {
		return nil
	}
	var repos []string
	for _, r := range strings.Split(list, ",") {
		if r = strings.TrimSpace(r); r != "" {
			repos = append(repos, r)
		}
	}
	return repos
}
