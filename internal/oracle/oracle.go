// Package oracle consults an external categorization service and
// normalizes its answer into a scoring.Analysis.
package oracle

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/drewdunne/prbounty/internal/config"
	"github.com/drewdunne/prbounty/internal/scoring"
	"github.com/drewdunne/prbounty/internal/signal"
)

// Client sends a categorization request and returns the raw JSON answer.
type Client interface {
	Categorize(ctx context.Context, req Request) ([]byte, error)
}

// Strategy identifies the oracle backend.
type Strategy string

const (
	StrategyNone   Strategy = "none"
	StrategyAPI    Strategy = "api"
	StrategyGemini Strategy = "gemini"
)

// ClientFactory creates a Client from configuration.
type ClientFactory func(ctx context.Context, cfg config.OracleConfig) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Strategy]ClientFactory)
)

// Register registers a client factory for a strategy.
func Register(strategy Strategy, factory ClientFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strategy] = factory
}

// NewClient creates a client for the configured strategy. It returns a nil
// client when the oracle is disabled.
func NewClient(ctx context.Context, cfg config.OracleConfig) (Client, error) {
	strategy := Strategy(cfg.Strategy)
	if strategy == "" || strategy == StrategyNone {
		return nil, nil
	}

	registryMu.RLock()
	factory, ok := registry[strategy]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("oracle strategy %q not registered (import _ \"github.com/drewdunne/prbounty/internal/oracle/%s\")", strategy, strategy)
	}
	return factory(ctx, cfg)
}

const maxDescription = 4000

// PullRequestSummary is the part of the signal shared with the oracle.
type PullRequestSummary struct {
	Owner          string   `json:"owner"`
	Repo           string   `json:"repo"`
	Number         int      `json:"number"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Author         string   `json:"author"`
	Additions      int      `json:"additions"`
	Deletions      int      `json:"deletions"`
	ChangedFiles   int      `json:"changed_files"`
	Files          []string `json:"files"`
	Commits        int      `json:"commits"`
	Reviews        int      `json:"reviews"`
	ReviewComments int      `json:"review_comments"`
	LinkedIssue    string   `json:"linked_issue,omitempty"`
	OpenHours      float64  `json:"open_hours"`
}

// Request is the payload sent to the oracle.
type Request struct {
	PullRequest     PullRequestSummary   `json:"pull_request"`
	MetricScores    scoring.MetricScores `json:"metric_scores"`
	Weights         scoring.Weights      `json:"weights"`
	Thresholds      scoring.Thresholds   `json:"thresholds"`
	LocalFinalScore float64              `json:"local_final_score"`
	LocalCategory   scoring.Category     `json:"local_category"`
}

// NewRequest builds the oracle payload from a signal, its local analysis and
// the scoring configuration that produced it.
func NewRequest(sig *signal.PullRequestSignal, local scoring.Analysis, cfg scoring.Config) Request {
	summary := PullRequestSummary{
		Owner:          sig.Owner,
		Repo:           sig.Repo,
		Number:         sig.Number,
		Title:          sig.Title,
		Description:    truncate(sig.Description, maxDescription),
		Author:         sig.Author,
		Additions:      sig.Additions,
		Deletions:      sig.Deletions,
		ChangedFiles:   sig.FileCount(),
		Files:          make([]string, 0, len(sig.Files)),
		Commits:        len(sig.Commits),
		Reviews:        len(sig.Reviews),
		ReviewComments: len(sig.ReviewComments),
	}
	for _, f := range sig.Files {
		summary.Files = append(summary.Files, f.Path)
	}
	if issue := sig.LinkedIssue; issue != nil {
		summary.LinkedIssue = fmt.Sprintf("%s/%s#%d %s", issue.Owner, issue.Repo, issue.Number, issue.Title)
	}
	if sig.MergedAt != nil && !sig.CreatedAt.IsZero() {
		summary.OpenHours = scoring.Round1(sig.MergedAt.Sub(sig.CreatedAt).Hours())
	}

	return Request{
		PullRequest:     summary,
		MetricScores:    local.MetricScores,
		Weights:         cfg.Weights,
		Thresholds:      cfg.Thresholds,
		LocalFinalScore: local.FinalScore,
		LocalCategory:   local.Category,
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
