package provider

import "context"

// Source is the read-only view of a code hosting platform needed to score a
// pull request. Implementations translate platform failures into the
// sentinel errors of this package.
type Source interface {
	// Name returns the provider name (github, gitlab).
	Name() string

	// GetPullRequest fetches a pull request (GitHub) or merge request (GitLab) by number.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)

	// ListFiles returns every file changed by the pull request.
	ListFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error)

	// ListCommits returns the commits of the pull request.
	ListCommits(ctx context.Context, owner, repo string, number int) ([]Commit, error)

	// ListReviews returns submitted reviews.
	ListReviews(ctx context.Context, owner, repo string, number int) ([]Review, error)

	// ListReviewComments returns inline comments attached to the diff.
	ListReviewComments(ctx context.Context, owner, repo string, number int) ([]ReviewComment, error)

	// GetIssue fetches an issue by number.
	GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error)

	// ListStatuses returns commit statuses reported for ref.
	ListStatuses(ctx context.Context, owner, repo, ref string) ([]Check, error)

	// ListCheckRuns returns check runs (GitHub) or pipelines (GitLab) for ref.
	ListCheckRuns(ctx context.Context, owner, repo, ref string) ([]Check, error)
}
