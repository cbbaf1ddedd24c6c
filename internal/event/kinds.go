package event

// Kind is an upstream GitHub event type string (e.g. "PushEvent").
// The values below are the closed set of kinds the system monitors;
// they must match the strings the Events API returns verbatim.
type Kind string

// Monitored event kinds
const (
	// Development
	KindPush        Kind = "PushEvent"
	KindPullRequest Kind = "PullRequestEvent"
	KindIssues      Kind = "IssuesEvent"
	KindCreate      Kind = "CreateEvent"
	KindDelete      Kind = "DeleteEvent"

	// Collaboration
	KindPullRequestReview        Kind = "PullRequestReviewEvent"
	KindPullRequestReviewComment Kind = "PullRequestReviewCommentEvent"
	KindIssueComment             Kind = "IssueCommentEvent"
	KindCommitComment            Kind = "CommitCommentEvent"

	// Engagement
	KindWatch               Kind = "WatchEvent"
	KindFork                Kind = "ForkEvent"
	KindSponsorship         Kind = "SponsorshipEvent"
	KindMarketplacePurchase Kind = "MarketplacePurchaseEvent"

	// Release / deploy
	KindRelease          Kind = "ReleaseEvent"
	KindDeployment       Kind = "DeploymentEvent"
	KindDeploymentStatus Kind = "DeploymentStatusEvent"

	// Quality
	KindStatus     Kind = "StatusEvent"
	KindCheckRun   Kind = "CheckRunEvent"
	KindCheckSuite Kind = "CheckSuiteEvent"

	// Management
	KindPublic  Kind = "PublicEvent"
	KindMember  Kind = "MemberEvent"
	KindTeamAdd Kind = "TeamAddEvent"

	// Docs
	KindGollum Kind = "GollumEvent"
)

// Kinds lists every monitored kind in a stable order. Count maps returned
// by the query layer cover this full set, zeros included.
var Kinds = []Kind{
	KindPush,
	KindPullRequest,
	KindIssues,
	KindCreate,
	KindDelete,
	KindPullRequestReview,
	KindPullRequestReviewComment,
	KindIssueComment,
	KindCommitComment,
	KindWatch,
	KindFork,
	KindSponsorship,
	KindMarketplacePurchase,
	KindRelease,
	KindDeployment,
	KindDeploymentStatus,
	KindStatus,
	KindCheckRun,
	KindCheckSuite,
	KindPublic,
	KindMember,
	KindTeamAdd,
	KindGollum,
}

var kindSet = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(Kinds))
	for _, k := range Kinds {
		m[k] = struct{}{}
	}
	return m
}()

// Monitored reports whether an upstream type string is in the monitored set.
func Monitored(t string) bool {
	_, ok := kindSet[Kind(t)]
	return ok
}

// ZeroCounts returns a count map covering every monitored kind.
func ZeroCounts() map[Kind]int {
	m := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		m[k] = 0
	}
	return m
}
