package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewdunne/prbounty/internal/logging"
	"github.com/drewdunne/prbounty/internal/provider"
	"github.com/drewdunne/prbounty/internal/provider/providertest"
)

func newSource() *providertest.Source {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	merged := created.Add(30 * time.Hour)

	src := providertest.NewSource()
	src.PullRequest = &provider.PullRequest{
		Number:      42,
		Title:       "Add pagination",
		Description: "Fixes #7",
		Author:      "alice",
		HeadSHA:     "abc123",
		Merged:      true,
		CreatedAt:   created,
		MergedAt:    &merged,
	}
	src.Files = []provider.ChangedFile{
		{Path: "list.go", Additions: 80, Deletions: 10},
		{Path: "list_test.go", Additions: 40},
	}
	src.Commits = []provider.Commit{{SHA: "abc123", Message: "add pagination"}}
	src.Reviews = []provider.Review{{Author: "bob", State: provider.ReviewApproved, SubmittedAt: created.Add(2 * time.Hour)}}
	src.ReviewComments = []provider.ReviewComment{{Author: "bob", Path: "list.go"}}
	src.Issues[7] = &provider.Issue{Owner: "owner", Repo: "repo", Number: 7, Title: "Pagination"}
	src.CheckRuns = []provider.Check{{Name: "ci", Status: "completed", Conclusion: "success"}}
	return src
}

func TestAggregate_AllSignals(t *testing.T) {
	src := newSource()
	agg := NewAggregator(time.Second, logging.Nop())

	sig, err := agg.Aggregate(context.Background(), src, "owner", "repo", 42)
	require.NoError(t, err)

	assert.Equal(t, "alice", sig.Author)
	assert.Len(t, sig.Files, 2)
	assert.Len(t, sig.Commits, 1)
	assert.Len(t, sig.Reviews, 1)
	assert.Len(t, sig.ReviewComments, 1)
	require.NotNil(t, sig.LinkedIssue)
	assert.Equal(t, 7, sig.LinkedIssue.Number)
	assert.Len(t, sig.Checks(), 1)
	assert.Equal(t, 120, sig.Additions, "line counts fall back to the file list")
	assert.Equal(t, 10, sig.Deletions)
}

func TestAggregate_MandatoryFailureIsFatal(t *testing.T) {
	tests := []struct {
		method string
		err    error
	}{
		{providertest.GetPullRequest, provider.ErrNotFound},
		{providertest.ListFiles, provider.ErrUnavailable},
		{providertest.ListCommits, provider.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			src := newSource().Fail(tt.method, tt.err)
			agg := NewAggregator(time.Second, logging.Nop())

			sig, err := agg.Aggregate(context.Background(), src, "owner", "repo", 42)
			assert.Nil(t, sig)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}

func TestAggregate_OptionalFailuresAbsorbed(t *testing.T) {
	src := newSource().
		Fail(providertest.ListReviews, provider.ErrUnavailable).
		Fail(providertest.ListReviewComments, provider.ErrRateLimited).
		Fail(providertest.GetIssue, provider.ErrNotFound).
		Fail(providertest.ListStatuses, provider.ErrUnauthorized).
		Fail(providertest.ListCheckRuns, provider.ErrUnavailable)
	agg := NewAggregator(time.Second, logging.Nop())

	sig, err := agg.Aggregate(context.Background(), src, "owner", "repo", 42)
	require.NoError(t, err)

	assert.Empty(t, sig.Reviews)
	assert.Empty(t, sig.ReviewComments)
	assert.Nil(t, sig.LinkedIssue)
	assert.Empty(t, sig.Checks())
	assert.Len(t, sig.Files, 2)
}

func TestAggregate_OptionalTimeoutBounded(t *testing.T) {
	src := newSource().Delay(providertest.ListReviews, time.Minute)
	agg := NewAggregator(50*time.Millisecond, logging.Nop())

	start := time.Now()
	sig, err := agg.Aggregate(context.Background(), src, "owner", "repo", 42)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, sig.Reviews)
	assert.Len(t, sig.ReviewComments, 1)
}

func TestAggregate_NoIssueReferenceSkipsLookup(t *testing.T) {
	src := newSource()
	src.PullRequest.Description = "Plain description"
	agg := NewAggregator(time.Second, logging.Nop())

	sig, err := agg.Aggregate(context.Background(), src, "owner", "repo", 42)
	require.NoError(t, err)

	assert.Nil(t, sig.LinkedIssue)
	assert.Equal(t, 0, src.Calls(providertest.GetIssue))
}

func TestAggregateFrom_DoesNotRefetchPullRequest(t *testing.T) {
	src := newSource()
	agg := NewAggregator(time.Second, logging.Nop())

	pr := *src.PullRequest
	_, err := agg.AggregateFrom(context.Background(), src, "owner", "repo", &pr)
	require.NoError(t, err)

	assert.Equal(t, 0, src.Calls(providertest.GetPullRequest))
}
