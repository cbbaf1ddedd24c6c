package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/skridlevsky/repopulse/internal/event"
)

// DefaultHealthWindowHours is the window used when the caller does not
// pick one (one week).
const DefaultHealthWindowHours = 168

// Kind groups feeding the health dimensions.
var (
	healthActivityKinds = []event.Kind{
		event.KindPush, event.KindPullRequest, event.KindIssues,
		event.KindCreate, event.KindDelete,
	}
	healthCollabKinds = []event.Kind{
		event.KindPullRequestReview, event.KindIssueComment,
		event.KindPullRequestReviewComment, event.KindCommitComment,
	}
	healthMaintenanceKinds = []event.Kind{
		event.KindRelease, event.KindDeployment,
		event.KindStatus, event.KindCheckRun,
	}
	healthSecurityKinds = []event.Kind{
		event.KindCheckSuite, event.KindStatus, event.KindDeploymentStatus,
	}
)

// HealthScore is the weighted composite repository health report. Each
// dimension is clamped to [0, 100].
type HealthScore struct {
	Repo          string    `json:"repo"`
	Hours         int       `json:"hours"`
	Overall       float64   `json:"overall"`
	Activity      float64   `json:"activity"`
	Collaboration float64   `json:"collaboration"`
	Maintenance   float64   `json:"maintenance"`
	Security      float64   `json:"security"`
	TotalEvents   int       `json:"total_events"`
	Timestamp     time.Time `json:"timestamp"`
}

// RepoHealth scores a repository over the window (default one week when
// hours is zero):
//
//	activity      = min(100, activity events per hour × 10)
//	collaboration = min(100, 100 × collab events / max(1, total))
//	maintenance   = min(100, maintenance events per hour × 20)
//	security      = min(100, security events per hour × 15)
//	overall       = 0.30·a + 0.25·c + 0.25·m + 0.20·s
func (s *Service) RepoHealth(ctx context.Context, repo string, hours int) (*HealthScore, error) {
	if repo == "" {
		return nil, fmt.Errorf("%w: repo is required", ErrInvalidArgument)
	}
	if hours == 0 {
		hours = DefaultHealthWindowHours
	}
	if hours < 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidArgument, hours)
	}

	now := s.now().UTC()
	counts, err := s.store.CountByKind(ctx, now.Add(-time.Duration(hours)*time.Hour), repo)
	if err != nil {
		return nil, err
	}

	total := sumCounts(counts)
	h := float64(hours)

	activity := clamp100(float64(sumKinds(counts, healthActivityKinds)) / h * 10)
	collaboration := clamp100(100 * float64(sumKinds(counts, healthCollabKinds)) / float64(maxInt(1, total)))
	maintenance := clamp100(float64(sumKinds(counts, healthMaintenanceKinds)) / h * 20)
	security := clamp100(float64(sumKinds(counts, healthSecurityKinds)) / h * 15)

	return &HealthScore{
		Repo:          repo,
		Hours:         hours,
		Overall:       0.30*activity + 0.25*collaboration + 0.25*maintenance + 0.20*security,
		Activity:      activity,
		Collaboration: collaboration,
		Maintenance:   maintenance,
		Security:      security,
		TotalEvents:   total,
		Timestamp:     now,
	}, nil
}

func sumKinds(counts map[event.Kind]int, kinds []event.Kind) int {
	sum := 0
	for _, k := range kinds {
		sum += counts[k]
	}
	return sum
}

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
