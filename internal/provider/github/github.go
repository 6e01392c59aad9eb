package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v60/github"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/drewdunne/prbounty/internal/provider"
)

const perPage = 100

// GitHubProvider implements provider.Source for GitHub.
//
// Mandatory lookups go through client and fail fast. Optional lookups
// (reviews, comments, issues, checks) go through retrying, which retries
// transient failures with backoff.
type GitHubProvider struct {
	client   *github.Client
	retrying *github.Client
}

type options struct {
	baseURL   string
	retries   int
	retryWait time.Duration
}

// Option configures the GitHub provider.
type Option func(*options)

// WithBaseURL sets a custom API base URL (GitHub Enterprise or tests).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithOptionalRetries sets how often optional lookups are retried and the
// minimum wait between attempts.
func WithOptionalRetries(retries int, wait time.Duration) Option {
	return func(o *options) {
		o.retries = retries
		o.retryWait = wait
	}
}

// New creates a new GitHub provider authenticating with token.
func New(token string, opts ...Option) *GitHubProvider {
	o := &options{retries: 1, retryWait: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(o)
	}

	authClient := &http.Client{Transport: http.DefaultTransport}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		authClient = oauth2.NewClient(context.Background(), ts)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = authClient
	rc.RetryMax = o.retries
	rc.RetryWaitMin = o.retryWait
	rc.RetryWaitMax = 4 * o.retryWait
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil

	p := &GitHubProvider{
		client:   github.NewClient(authClient),
		retrying: github.NewClient(rc.StandardClient()),
	}

	if o.baseURL != "" {
		p.client.BaseURL, _ = p.client.BaseURL.Parse(o.baseURL + "/")
		p.retrying.BaseURL, _ = p.retrying.BaseURL.Parse(o.baseURL + "/")
	}

	return p
}

// Name returns the provider name.
func (p *GitHubProvider) Name() string {
	return "github"
}

// GetPullRequest fetches a pull request by number.
func (p *GitHubProvider) GetPullRequest(ctx context.Context, owner, repo string, number int) (*provider.PullRequest, error) {
	pr, resp, err := p.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request: %w", classify(resp, err))
	}

	result := &provider.PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Description:  pr.GetBody(),
		State:        pr.GetState(),
		Author:       pr.GetUser().GetLogin(),
		URL:          pr.GetHTMLURL(),
		HeadSHA:      pr.GetHead().GetSHA(),
		Merged:       pr.GetMerged(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		CreatedAt:    pr.GetCreatedAt().Time,
	}
	if pr.MergedAt != nil {
		mergedAt := pr.GetMergedAt().Time
		result.MergedAt = &mergedAt
		result.Merged = true
	}
	if result.Merged {
		result.State = "merged"
	}

	return result, nil
}

// ListFiles returns files changed in a pull request.
func (p *GitHubProvider) ListFiles(ctx context.Context, owner, repo string, number int) ([]provider.ChangedFile, error) {
	var result []provider.ChangedFile
	opt := &github.ListOptions{PerPage: perPage}
	for {
		files, resp, err := p.client.PullRequests.ListFiles(ctx, owner, repo, number, opt)
		if err != nil {
			return nil, fmt.Errorf("listing changed files: %w", classify(resp, err))
		}
		for _, f := range files {
			result = append(result, provider.ChangedFile{
				Path:      f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opt.Page = resp.NextPage
	}
}

// ListCommits returns the commits of a pull request.
func (p *GitHubProvider) ListCommits(ctx context.Context, owner, repo string, number int) ([]provider.Commit, error) {
	var result []provider.Commit
	opt := &github.ListOptions{PerPage: perPage}
	for {
		commits, resp, err := p.client.PullRequests.ListCommits(ctx, owner, repo, number, opt)
		if err != nil {
			return nil, fmt.Errorf("listing commits: %w", classify(resp, err))
		}
		for _, c := range commits {
			result = append(result, provider.Commit{
				SHA:     c.GetSHA(),
				Message: c.GetCommit().GetMessage(),
				Author:  c.GetAuthor().GetLogin(),
				Date:    c.GetCommit().GetAuthor().GetDate().Time,
			})
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opt.Page = resp.NextPage
	}
}

// ListReviews returns submitted reviews of a pull request.
func (p *GitHubProvider) ListReviews(ctx context.Context, owner, repo string, number int) ([]provider.Review, error) {
	var result []provider.Review
	opt := &github.ListOptions{PerPage: perPage}
	for {
		reviews, resp, err := p.retrying.PullRequests.ListReviews(ctx, owner, repo, number, opt)
		if err != nil {
			return nil, fmt.Errorf("listing reviews: %w", classify(resp, err))
		}
		for _, r := range reviews {
			state, ok := reviewState(r.GetState())
			if !ok {
				continue
			}
			result = append(result, provider.Review{
				Author:      r.GetUser().GetLogin(),
				State:       state,
				SubmittedAt: r.GetSubmittedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opt.Page = resp.NextPage
	}
}

// reviewState maps GitHub review states; pending reviews are skipped.
func reviewState(s string) (provider.ReviewState, bool) {
	switch s {
	case "APPROVED":
		return provider.ReviewApproved, true
	case "CHANGES_REQUESTED":
		return provider.ReviewChangesRequested, true
	case "COMMENTED":
		return provider.ReviewCommented, true
	case "DISMISSED":
		return provider.ReviewDismissed, true
	}
	return "", false
}

// ListReviewComments returns inline review comments.
func (p *GitHubProvider) ListReviewComments(ctx context.Context, owner, repo string, number int) ([]provider.ReviewComment, error) {
	var result []provider.ReviewComment
	opt := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := p.retrying.PullRequests.ListComments(ctx, owner, repo, number, opt)
		if err != nil {
			return nil, fmt.Errorf("listing review comments: %w", classify(resp, err))
		}
		for _, c := range comments {
			result = append(result, provider.ReviewComment{
				Author:    c.GetUser().GetLogin(),
				Path:      c.GetPath(),
				CreatedAt: c.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opt.Page = resp.NextPage
	}
}

// GetIssue fetches an issue by number.
func (p *GitHubProvider) GetIssue(ctx context.Context, owner, repo string, number int) (*provider.Issue, error) {
	issue, resp, err := p.retrying.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching issue: %w", classify(resp, err))
	}

	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	return &provider.Issue{
		Owner:  owner,
		Repo:   repo,
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		State:  issue.GetState(),
		Labels: labels,
	}, nil
}

// ListStatuses returns commit statuses for ref, the latest per context.
func (p *GitHubProvider) ListStatuses(ctx context.Context, owner, repo, ref string) ([]provider.Check, error) {
	// Statuses are newest first across pages.
	seen := make(map[string]bool)
	var result []provider.Check
	opt := &github.ListOptions{PerPage: perPage}
	for {
		statuses, resp, err := p.retrying.Repositories.ListStatuses(ctx, owner, repo, ref, opt)
		if err != nil {
			return nil, fmt.Errorf("listing statuses: %w", classify(resp, err))
		}
		for _, s := range statuses {
			if seen[s.GetContext()] {
				continue
			}
			seen[s.GetContext()] = true

			check := provider.Check{Name: s.GetContext(), Status: "completed"}
			switch s.GetState() {
			case "success":
				check.Conclusion = "success"
			case "pending":
				check.Status = "in_progress"
			default:
				check.Conclusion = "failure"
			}
			result = append(result, check)
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opt.Page = resp.NextPage
	}
}

// ListCheckRuns returns check runs for ref.
func (p *GitHubProvider) ListCheckRuns(ctx context.Context, owner, repo, ref string) ([]provider.Check, error) {
	var result []provider.Check
	opt := &github.ListCheckRunsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		runs, resp, err := p.retrying.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, opt)
		if err != nil {
			return nil, fmt.Errorf("listing check runs: %w", classify(resp, err))
		}
		for _, r := range runs.CheckRuns {
			result = append(result, provider.Check{
				Name:       r.GetName(),
				Status:     r.GetStatus(),
				Conclusion: r.GetConclusion(),
			})
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opt.Page = resp.NextPage
	}
}

func classify(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %v", provider.ErrRateLimited, err)
	}
	if resp == nil || resp.Response == nil {
		return provider.Classify(0, err)
	}
	return provider.Classify(resp.StatusCode, err)
}
