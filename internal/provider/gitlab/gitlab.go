package gitlab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xanzy/go-gitlab"

	"github.com/drewdunne/prbounty/internal/provider"
)

const perPage = 100

// GitLabProvider implements provider.Source for GitLab merge requests.
type GitLabProvider struct {
	client   *gitlab.Client
	retrying *gitlab.Client
}

type options struct {
	baseURL   string
	retries   int
	retryWait time.Duration
}

// Option configures the GitLab provider.
type Option func(*options)

// WithBaseURL sets a custom base URL (self-managed instances or tests).
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
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

// New creates a new GitLab provider.
func New(token string, opts ...Option) (*GitLabProvider, error) {
	o := &options{retries: 1, retryWait: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(o)
	}

	clientOpts := func(extra ...gitlab.ClientOptionFunc) []gitlab.ClientOptionFunc {
		var opts []gitlab.ClientOptionFunc
		if o.baseURL != "" {
			opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(o.baseURL, "/")+"/api/v4"))
		}
		return append(opts, extra...)
	}

	client, err := gitlab.NewClient(token, clientOpts(gitlab.WithoutRetries())...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	retryOpts := clientOpts(gitlab.WithoutRetries())
	if o.retries > 0 {
		retryOpts = clientOpts(
			gitlab.WithCustomRetryMax(o.retries),
			gitlab.WithCustomRetryWaitMinMax(o.retryWait, 4*o.retryWait),
		)
	}
	retrying, err := gitlab.NewClient(token, retryOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	return &GitLabProvider{client: client, retrying: retrying}, nil
}

// Name returns the provider name.
func (p *GitLabProvider) Name() string {
	return "gitlab"
}

// projectPath joins owner (which may contain subgroups) and repo.
func projectPath(owner, repo string) string {
	return owner + "/" + repo
}

// GetPullRequest fetches a merge request by IID.
func (p *GitLabProvider) GetPullRequest(ctx context.Context, owner, repo string, number int) (*provider.PullRequest, error) {
	mr, resp, err := p.client.MergeRequests.GetMergeRequest(projectPath(owner, repo), number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching merge request: %w", classify(resp, err))
	}

	result := &provider.PullRequest{
		Number:      mr.IID,
		Title:       mr.Title,
		Description: mr.Description,
		State:       mr.State,
		URL:         mr.WebURL,
		HeadSHA:     mr.SHA,
		Merged:      mr.State == "merged",
		MergedAt:    mr.MergedAt,
	}
	if mr.Author != nil {
		result.Author = mr.Author.Username
	}
	if mr.CreatedAt != nil {
		result.CreatedAt = *mr.CreatedAt
	}

	return result, nil
}

// ListFiles returns files changed in a merge request with line counts
// derived from the diffs.
func (p *GitLabProvider) ListFiles(ctx context.Context, owner, repo string, number int) ([]provider.ChangedFile, error) {
	changes, resp, err := p.client.MergeRequests.GetMergeRequestChanges(projectPath(owner, repo), number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching merge request changes: %w", classify(resp, err))
	}

	result := make([]provider.ChangedFile, len(changes.Changes))
	for i, c := range changes.Changes {
		status := "modified"
		if c.NewFile {
			status = "added"
		} else if c.DeletedFile {
			status = "deleted"
		} else if c.RenamedFile {
			status = "renamed"
		}
		additions, deletions := countDiffLines(c.Diff)
		result[i] = provider.ChangedFile{
			Path:      c.NewPath,
			Status:    status,
			Additions: additions,
			Deletions: deletions,
			Patch:     c.Diff,
		}
	}
	return result, nil
}

func countDiffLines(diff string) (additions, deletions int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

// ListCommits returns the commits of a merge request.
func (p *GitLabProvider) ListCommits(ctx context.Context, owner, repo string, number int) ([]provider.Commit, error) {
	var result []provider.Commit
	opt := &gitlab.GetMergeRequestCommitsOptions{PerPage: perPage}
	for {
		commits, resp, err := p.client.MergeRequests.GetMergeRequestCommits(projectPath(owner, repo), number, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing commits: %w", classify(resp, err))
		}
		for _, c := range commits {
			commit := provider.Commit{SHA: c.ID, Message: c.Message, Author: c.AuthorName}
			if c.AuthoredDate != nil {
				commit.Date = *c.AuthoredDate
			}
			result = append(result, commit)
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opt.Page = resp.NextPage
	}
}

// ListReviews derives reviews from approvals and discussions. Each approver
// counts as an approval. Each other participant who opened a resolvable
// thread counts as one round of requested changes, the rest as comments.
func (p *GitLabProvider) ListReviews(ctx context.Context, owner, repo string, number int) ([]provider.Review, error) {
	pid := projectPath(owner, repo)

	approvals, resp, err := p.retrying.MergeRequestApprovals.GetConfiguration(pid, number, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching approvals: %w", classify(resp, err))
	}

	discussions, err := p.listDiscussions(ctx, pid, number)
	if err != nil {
		return nil, err
	}

	type participation struct {
		requested bool
		first     time.Time
	}
	byAuthor := make(map[string]participation)
	for _, d := range discussions {
		if len(d.Notes) == 0 {
			continue
		}
		n := d.Notes[0]
		if n.System || n.Author.Username == "" {
			continue
		}
		part := byAuthor[n.Author.Username]
		if n.Resolvable {
			part.requested = true
		}
		if n.CreatedAt != nil && (part.first.IsZero() || n.CreatedAt.Before(part.first)) {
			part.first = *n.CreatedAt
		}
		byAuthor[n.Author.Username] = part
	}

	authors := make([]string, 0, len(byAuthor))
	for a := range byAuthor {
		authors = append(authors, a)
	}
	sort.Strings(authors)

	var result []provider.Review
	for _, a := range authors {
		state := provider.ReviewCommented
		if byAuthor[a].requested {
			state = provider.ReviewChangesRequested
		}
		result = append(result, provider.Review{Author: a, State: state, SubmittedAt: byAuthor[a].first})
	}
	for _, a := range approvals.ApprovedBy {
		if a.User == nil {
			continue
		}
		result = append(result, provider.Review{Author: a.User.Username, State: provider.ReviewApproved})
	}
	return result, nil
}

// ListReviewComments returns diff notes.
func (p *GitLabProvider) ListReviewComments(ctx context.Context, owner, repo string, number int) ([]provider.ReviewComment, error) {
	discussions, err := p.listDiscussions(ctx, projectPath(owner, repo), number)
	if err != nil {
		return nil, err
	}

	var result []provider.ReviewComment
	for _, d := range discussions {
		for _, n := range d.Notes {
			if n.System || n.Position == nil {
				continue
			}
			c := provider.ReviewComment{Author: n.Author.Username, Path: n.Position.NewPath}
			if n.CreatedAt != nil {
				c.CreatedAt = *n.CreatedAt
			}
			result = append(result, c)
		}
	}
	return result, nil
}

func (p *GitLabProvider) listDiscussions(ctx context.Context, pid string, number int) ([]*gitlab.Discussion, error) {
	var result []*gitlab.Discussion
	opt := &gitlab.ListMergeRequestDiscussionsOptions{PerPage: perPage}
	for {
		discussions, resp, err := p.retrying.Discussions.ListMergeRequestDiscussions(pid, number, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing discussions: %w", classify(resp, err))
		}
		result = append(result, discussions...)
		if resp.NextPage == 0 {
			return result, nil
		}
		opt.Page = resp.NextPage
	}
}

// GetIssue fetches an issue by IID.
func (p *GitLabProvider) GetIssue(ctx context.Context, owner, repo string, number int) (*provider.Issue, error) {
	issue, resp, err := p.retrying.Issues.GetIssue(projectPath(owner, repo), number, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching issue: %w", classify(resp, err))
	}

	return &provider.Issue{
		Owner:  owner,
		Repo:   repo,
		Number: issue.IID,
		Title:  issue.Title,
		State:  issue.State,
		Labels: issue.Labels,
	}, nil
}

// ListStatuses returns commit statuses for ref.
func (p *GitLabProvider) ListStatuses(ctx context.Context, owner, repo, ref string) ([]provider.Check, error) {
	statuses, resp, err := p.retrying.Commits.GetCommitStatuses(projectPath(owner, repo), ref, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing statuses: %w", classify(resp, err))
	}

	result := make([]provider.Check, 0, len(statuses))
	for _, s := range statuses {
		result = append(result, pipelineCheck(s.Name, s.Status))
	}
	return result, nil
}

// ListCheckRuns returns the pipelines that ran for ref.
func (p *GitLabProvider) ListCheckRuns(ctx context.Context, owner, repo, ref string) ([]provider.Check, error) {
	pipelines, resp, err := p.retrying.Pipelines.ListProjectPipelines(projectPath(owner, repo), &gitlab.ListProjectPipelinesOptions{
		SHA: gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", classify(resp, err))
	}

	// Pipelines are newest first; only the latest one decides.
	if len(pipelines) == 0 {
		return nil, nil
	}
	latest := pipelines[0]
	return []provider.Check{pipelineCheck(fmt.Sprintf("pipeline/%d", latest.ID), latest.Status)}, nil
}

func pipelineCheck(name, status string) provider.Check {
	check := provider.Check{Name: name, Status: "completed"}
	switch status {
	case "success":
		check.Conclusion = "success"
	case "skipped":
		check.Conclusion = "skipped"
	case "failed", "canceled":
		check.Conclusion = "failure"
	default:
		check.Status = "in_progress"
	}
	return check
}

func classify(resp *gitlab.Response, err error) error {
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return provider.Classify(errResp.Response.StatusCode, err)
	}
	if resp == nil || resp.Response == nil {
		return provider.Classify(0, err)
	}
	return provider.Classify(resp.StatusCode, err)
}
