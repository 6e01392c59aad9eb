// Package providertest provides an in-memory provider.Source for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drewdunne/prbounty/internal/provider"
)

// Method names accepted by Fail, Delay and Calls.
const (
	GetPullRequest     = "GetPullRequest"
	ListFiles          = "ListFiles"
	ListCommits        = "ListCommits"
	ListReviews        = "ListReviews"
	ListReviewComments = "ListReviewComments"
	GetIssue           = "GetIssue"
	ListStatuses       = "ListStatuses"
	ListCheckRuns      = "ListCheckRuns"
)

// Source is a scripted provider.Source. Configure the exported fields
// before use; they must not be mutated while calls are in flight.
type Source struct {
	PullRequest    *provider.PullRequest
	Files          []provider.ChangedFile
	Commits        []provider.Commit
	Reviews        []provider.Review
	ReviewComments []provider.ReviewComment
	Issues         map[int]*provider.Issue
	Statuses       []provider.Check
	CheckRuns      []provider.Check

	mu     sync.Mutex
	errs   map[string]error
	delays map[string]time.Duration
	calls  map[string]int
}

// NewSource returns an empty source.
func NewSource() *Source {
	return &Source{
		Issues: make(map[int]*provider.Issue),
		errs:   make(map[string]error),
		delays: make(map[string]time.Duration),
		calls:  make(map[string]int),
	}
}

// Fail makes method return err.
func (s *Source) Fail(method string, err error) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[method] = err
	return s
}

// Delay makes method block for d or until its context is done.
func (s *Source) Delay(method string, d time.Duration) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[method] = d
	return s
}

// Calls returns how often method was invoked.
func (s *Source) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (s *Source) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Source) enter(ctx context.Context, method string) error {
	s.mu.Lock()
	s.calls[method]++
	err := s.errs[method]
	delay := s.delays[method]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Name returns the provider name.
func (s *Source) Name() string { return "fake" }

func (s *Source) GetPullRequest(ctx context.Context, owner, repo string, number int) (*provider.PullRequest, error) {
	if err := s.enter(ctx, GetPullRequest); err != nil {
		return nil, err
	}
	if s.PullRequest == nil || s.PullRequest.Number != number {
		return nil, fmt.Errorf("%w: pull request %d", provider.ErrNotFound, number)
	}
	pr := *s.PullRequest
	return &pr, nil
}

func (s *Source) ListFiles(ctx context.Context, owner, repo string, number int) ([]provider.ChangedFile, error) {
	if err := s.enter(ctx, ListFiles); err != nil {
		return nil, err
	}
	return s.Files, nil
}

func (s *Source) ListCommits(ctx context.Context, owner, repo string, number int) ([]provider.Commit, error) {
	if err := s.enter(ctx, ListCommits); err != nil {
		return nil, err
	}
	return s.Commits, nil
}

func (s *Source) ListReviews(ctx context.Context, owner, repo string, number int) ([]provider.Review, error) {
	if err := s.enter(ctx, ListReviews); err != nil {
		return nil, err
	}
	return s.Reviews, nil
}

func (s *Source) ListReviewComments(ctx context.Context, owner, repo string, number int) ([]provider.ReviewComment, error) {
	if err := s.enter(ctx, ListReviewComments); err != nil {
		return nil, err
	}
	return s.ReviewComments, nil
}

func (s *Source) GetIssue(ctx context.Context, owner, repo string, number int) (*provider.Issue, error) {
	if err := s.enter(ctx, GetIssue); err != nil {
		return nil, err
	}
	issue, ok := s.Issues[number]
	if !ok {
		return nil, fmt.Errorf("%w: issue %d", provider.ErrNotFound, number)
	}
	return issue, nil
}

func (s *Source) ListStatuses(ctx context.Context, owner, repo, ref string) ([]provider.Check, error) {
	if err := s.enter(ctx, ListStatuses); err != nil {
		return nil, err
	}
	return s.Statuses, nil
}

func (s *Source) ListCheckRuns(ctx context.Context, owner, repo, ref string) ([]provider.Check, error) {
	if err := s.enter(ctx, ListCheckRuns); err != nil {
		return nil, err
	}
	return s.CheckRuns, nil
}

var _ provider.Source = (*Source)(nil)
