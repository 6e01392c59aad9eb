package signal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/drewdunne/prbounty/internal/provider"
)

// Aggregator gathers a PullRequestSignal from a provider.Source.
//
// The pull request, its files and its commits are mandatory: any failure
// aborts aggregation. Reviews, review comments, the linked issue, commit
// statuses and check runs are optional: each is bounded by its own timeout
// and a failure leaves that part empty.
type Aggregator struct {
	optionalTimeout time.Duration
	log             *zap.SugaredLogger
}

// NewAggregator creates an Aggregator. optionalTimeout bounds each
// optional fetch.
func NewAggregator(optionalTimeout time.Duration, log *zap.SugaredLogger) *Aggregator {
	return &Aggregator{
		optionalTimeout: optionalTimeout,
		log:             log.Named("signal"),
	}
}

// Aggregate fetches the pull request and everything attached to it.
func (a *Aggregator) Aggregate(ctx context.Context, src provider.Source, owner, repo string, number int) (*PullRequestSignal, error) {
	pr, err := src.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	return a.AggregateFrom(ctx, src, owner, repo, pr)
}

// AggregateFrom gathers the remaining signals for an already fetched pull
// request. Mandatory and optional fetches run concurrently.
func (a *Aggregator) AggregateFrom(ctx context.Context, src provider.Source, owner, repo string, pr *provider.PullRequest) (*PullRequestSignal, error) {
	sig := &PullRequestSignal{
		Owner:        owner,
		Repo:         repo,
		Number:       pr.Number,
		Title:        pr.Title,
		Description:  pr.Description,
		Author:       pr.Author,
		HeadSHA:      pr.HeadSHA,
		Additions:    pr.Additions,
		Deletions:    pr.Deletions,
		ChangedFiles: pr.ChangedFiles,
		Merged:       pr.Merged,
		CreatedAt:    pr.CreatedAt,
		MergedAt:     pr.MergedAt,
	}
	number := pr.Number

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var optional errgroup.Group
	a.optional(ctx, &optional, "reviews", func(ctx context.Context) error {
		reviews, err := src.ListReviews(ctx, owner, repo, number)
		if err == nil {
			sig.Reviews = reviews
		}
		return err
	})
	a.optional(ctx, &optional, "review_comments", func(ctx context.Context) error {
		comments, err := src.ListReviewComments(ctx, owner, repo, number)
		if err == nil {
			sig.ReviewComments = comments
		}
		return err
	})
	if ref := DetectLinkedIssue(pr.Title, pr.Description, owner, repo, number); ref != nil {
		a.optional(ctx, &optional, "linked_issue", func(ctx context.Context) error {
			issue, err := src.GetIssue(ctx, ref.Owner, ref.Repo, ref.Number)
			if err == nil {
				sig.LinkedIssue = issue
			}
			return err
		})
	}
	if pr.HeadSHA != "" {
		a.optional(ctx, &optional, "statuses", func(ctx context.Context) error {
			statuses, err := src.ListStatuses(ctx, owner, repo, pr.HeadSHA)
			if err == nil {
				sig.Statuses = statuses
			}
			return err
		})
		a.optional(ctx, &optional, "check_runs", func(ctx context.Context) error {
			runs, err := src.ListCheckRuns(ctx, owner, repo, pr.HeadSHA)
			if err == nil {
				sig.CheckRuns = runs
			}
			return err
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		files, err := src.ListFiles(gctx, owner, repo, number)
		if err != nil {
			return fmt.Errorf("listing files: %w", err)
		}
		sig.Files = files
		return nil
	})
	g.Go(func() error {
		commits, err := src.ListCommits(gctx, owner, repo, number)
		if err != nil {
			return fmt.Errorf("listing commits: %w", err)
		}
		sig.Commits = commits
		return nil
	})

	err := g.Wait()
	if err != nil {
		cancel()
	}
	optional.Wait()
	if err != nil {
		return nil, err
	}

	if sig.Additions == 0 && sig.Deletions == 0 {
		for _, f := range sig.Files {
			sig.Additions += f.Additions
			sig.Deletions += f.Deletions
		}
	}

	return sig, nil
}

// optional runs fetch in the background under its own timeout. A failed
// fetch is logged and its result discarded.
func (a *Aggregator) optional(ctx context.Context, g *errgroup.Group, name string, fetch func(context.Context) error) {
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, a.optionalTimeout)
		defer cancel()

		if err := fetch(ctx); err != nil {
			a.log.Warnw("optional signal unavailable", "signal", name, "error", err)
		}
		return nil
	})
}
