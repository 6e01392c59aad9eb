// Package eligibility decides whether a user may claim a bounty for a pull
// request. Checks run in order and stop at the first failure.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/drewdunne/prbounty/internal/provider"
	"github.com/drewdunne/prbounty/internal/store"
)

var (
	ErrInvalidPullRequestURL = errors.New("invalid pull request url")
	ErrWrongRepository       = errors.New("pull request does not belong to the project repository")
	ErrUnauthenticated       = errors.New("no authenticated user")
	ErrNotAuthor             = errors.New("authenticated user is not the pull request author")
	ErrNotMerged             = errors.New("pull request is not merged")
)

// IsEligibilityError reports whether err is one of the validator's
// rejections rather than a platform failure.
func IsEligibilityError(err error) bool {
	for _, target := range []error{ErrInvalidPullRequestURL, ErrWrongRepository, ErrUnauthenticated, ErrNotAuthor, ErrNotMerged} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Result is a pull request that passed every check.
type Result struct {
	Target      Target
	PullRequest *provider.PullRequest
}

// CheckRepository parses prURL and matches it against the project. It
// makes no platform calls.
func CheckRepository(prURL string, project *store.Project) (Target, error) {
	target, err := ParsePullRequestURL(prURL)
	if err != nil {
		return Target{}, err
	}
	if target.RepoIdentifier() != store.NormalizeRepoIdentifier(project.RepoIdentifier) {
		return Target{}, fmt.Errorf("%w: %s is not %s", ErrWrongRepository, target.RepoIdentifier(), project.RepoIdentifier)
	}
	return target, nil
}

// Validate checks repository, authorship and merge state. Platform errors
// from fetching the pull request are returned as they are.
func Validate(ctx context.Context, src provider.Source, prURL string, project *store.Project, handle string) (*Result, error) {
	target, err := CheckRepository(prURL, project)
	if err != nil {
		return nil, err
	}

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrUnauthenticated
	}

	pr, err := src.GetPullRequest(ctx, target.Owner, target.Repo, target.Number)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request: %w", err)
	}

	if !strings.EqualFold(pr.Author, handle) {
		return nil, fmt.Errorf("%w: author is %s", ErrNotAuthor, pr.Author)
	}
	if !pr.Merged {
		return nil, ErrNotMerged
	}

	return &Result{Target: target, PullRequest: pr}, nil
}
