// Package pipeline runs the eligibility, scoring, bounty and claim stages
// for a pull request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/drewdunne/prbounty/internal/bounty"
	"github.com/drewdunne/prbounty/internal/eligibility"
	"github.com/drewdunne/prbounty/internal/ledger"
	"github.com/drewdunne/prbounty/internal/logging"
	"github.com/drewdunne/prbounty/internal/metrics"
	"github.com/drewdunne/prbounty/internal/oracle"
	"github.com/drewdunne/prbounty/internal/provider"
	"github.com/drewdunne/prbounty/internal/scoring"
	"github.com/drewdunne/prbounty/internal/signal"
	"github.com/drewdunne/prbounty/internal/store"
)

// ErrProjectNotFound is returned when the request names an unknown project.
var ErrProjectNotFound = errors.New("project not found")

// SourceResolver picks the platform source for a pull request URL.
type SourceResolver interface {
	ForURL(rawURL, token string) (provider.Source, error)
}

// Pipeline wires the stages together. Every stage before the ledger is
// read-only.
type Pipeline struct {
	store      store.Store
	sources    SourceResolver
	aggregator *signal.Aggregator
	engine     *scoring.Engine
	oracle     *oracle.Adapter
	ledger     *ledger.Ledger
	journal    *logging.Writer
	log        *zap.SugaredLogger
}

// Deps are the collaborators of a Pipeline. Oracle and Journal are optional.
type Deps struct {
	Store      store.Store
	Sources    SourceResolver
	Aggregator *signal.Aggregator
	Engine     *scoring.Engine
	Oracle     *oracle.Adapter
	Ledger     *ledger.Ledger
	Journal    *logging.Writer
	Log        *zap.SugaredLogger
}

// New creates a Pipeline.
func New(d Deps) *Pipeline {
	return &Pipeline{
		store:      d.Store,
		sources:    d.Sources,
		aggregator: d.Aggregator,
		engine:     d.Engine,
		oracle:     d.Oracle,
		ledger:     d.Ledger,
		journal:    d.Journal,
		log:        d.Log.Named("pipeline"),
	}
}

// ScoreRequest asks for a pull request to be validated and scored.
type ScoreRequest struct {
	PRURL      string
	ProjectID  string
	UserHandle string
	// Token is an optional platform credential used instead of the
	// configured service token.
	Token string
}

// Scored is a validated, scored pull request with its bounty preview.
type Scored struct {
	Project        *store.Project            `json:"project"`
	Target         eligibility.Target        `json:"-"`
	PRURL          string                    `json:"pr_url"`
	Analysis       scoring.Analysis          `json:"analysis"`
	Bounty         float64                   `json:"bounty"`
	FallbackReason string                    `json:"fallback_reason,omitempty"`
	Signal         *signal.PullRequestSignal `json:"-"`
}

// ValidateAndScore checks eligibility, aggregates signals, scores the pull
// request and previews its bounty. It writes nothing to the store.
func (p *Pipeline) ValidateAndScore(ctx context.Context, req ScoreRequest) (*Scored, error) {
	log := logging.FromContextOr(ctx, p.log).With("pr_url", req.PRURL, "project_id", req.ProjectID)

	project, err := p.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, req.ProjectID)
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}
	if err := bounty.ValidateRange(project.LowestBounty, project.HighestBounty); err != nil {
		return nil, err
	}

	if _, err := eligibility.CheckRepository(req.PRURL, project); err != nil {
		metrics.EligibilityRejected()
		log.Infow("eligibility rejected", "reason", err)
		return nil, err
	}

	src, err := p.sources.ForURL(req.PRURL, req.Token)
	if err != nil {
		return nil, err
	}

	res, err := eligibility.Validate(ctx, src, req.PRURL, project, req.UserHandle)
	if err != nil {
		if eligibility.IsEligibilityError(err) {
			metrics.EligibilityRejected()
			log.Infow("eligibility rejected", "reason", err)
		} else {
			metrics.AggregationFailed()
			log.Warnw("pull request fetch failed", "error", err)
		}
		return nil, err
	}
	target := res.Target

	sig, err := p.aggregator.AggregateFrom(ctx, src, target.Owner, target.Repo, res.PullRequest)
	if err != nil {
		metrics.AggregationFailed()
		log.Warnw("signal aggregation failed", "error", err)
		return nil, fmt.Errorf("aggregating signals: %w", err)
	}

	local := p.engine.Score(sig)
	analysis := local
	var fallback string
	if p.oracle.Enabled() {
		overlay, err := p.oracle.TryOracle(ctx, sig, local, p.engine.Config())
		if err != nil {
			metrics.OracleFallback()
			fallback = err.Error()
		} else {
			metrics.OracleUse()
			analysis = *overlay
		}
	}
	metrics.ScoreComputed()

	scored := &Scored{
		Project:        project,
		Target:         target,
		PRURL:          canonicalURL(res.PullRequest, req.PRURL),
		Analysis:       analysis,
		Bounty:         bounty.Compute(analysis.FinalScore, project.LowestBounty, project.HighestBounty),
		FallbackReason: fallback,
		Signal:         sig,
	}

	log.Infow("pull request scored",
		"source", analysis.Source,
		"category", analysis.Category,
		"final_score", analysis.FinalScore,
		"bounty", scored.Bounty,
	)
	p.record(ctx, scored, "score", "")
	return scored, nil
}

// ClaimRequest asks for the bounty of a pull request.
type ClaimRequest struct {
	PRURL      string
	ProjectID  string
	UserHandle string
	// DeveloperID identifies the payee. It defaults to UserHandle.
	DeveloperID string
	Token       string
}

// Claim is a successful claim.
type Claim struct {
	Scored *Scored             `json:"scored"`
	Payout *store.PayoutRecord `json:"payout"`
}

// ClaimBounty validates and scores the pull request, then records the
// claim with the same score and amount it reports.
func (p *Pipeline) ClaimBounty(ctx context.Context, req ClaimRequest) (*Claim, error) {
	developer := strings.TrimSpace(req.DeveloperID)
	if developer == "" {
		developer = strings.TrimSpace(req.UserHandle)
	}

	scored, err := p.ValidateAndScore(ctx, ScoreRequest{
		PRURL:      req.PRURL,
		ProjectID:  req.ProjectID,
		UserHandle: req.UserHandle,
		Token:      req.Token,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logging.FromContextOr(ctx, p.log).With("pr_url", scored.PRURL, "project_id", req.ProjectID, "developer_id", developer)

	payout, err := p.ledger.Claim(ctx, ledger.ClaimRequest{
		ProjectID:   scored.Project.ID,
		PRNumber:    scored.Target.Number,
		PRURL:       scored.PRURL,
		DeveloperID: developer,
		Score:       scored.Analysis.FinalScore,
		Amount:      scored.Bounty,
	})
	if errors.Is(err, ledger.ErrStorageConflict) {
		err = p.afterConflict(ctx, scored, err)
	}
	if err != nil {
		metrics.ClaimRejected()
		log.Infow("claim rejected", "reason", err)
		return nil, err
	}

	metrics.ClaimSucceeded()
	log.Infow("claim recorded", "payout_id", payout.ID, "amount", payout.Amount)
	p.record(ctx, scored, "claim", developer)
	return &Claim{Scored: scored, Payout: payout}, nil
}

// afterConflict re-reads the unit after a storage conflict and reports
// the winning claim when there is one.
func (p *Pipeline) afterConflict(ctx context.Context, scored *Scored, conflict error) error {
	unit, err := p.ledger.State(ctx, scored.Project.ID, scored.Target.Number, scored.PRURL)
	if err != nil {
		return conflict
	}
	if already := ledger.AlreadyClaimedFrom(unit); already != nil {
		return already
	}
	return conflict
}

// State returns the claim state of a pull request in a project.
func (p *Pipeline) State(ctx context.Context, projectID, prURL string) (*store.ClaimableUnit, error) {
	var number int
	if target, err := eligibility.ParsePullRequestURL(prURL); err == nil {
		number = target.Number
	}
	return p.ledger.State(ctx, projectID, number, prURL)
}

func (p *Pipeline) record(ctx context.Context, s *Scored, stage, developer string) {
	if p.journal == nil {
		return
	}
	entry := logging.JournalEntry{
		Host:           s.Target.Host,
		Owner:          s.Target.Owner,
		Repo:           s.Target.Repo,
		Number:         s.Target.Number,
		Stage:          stage,
		Source:         string(s.Analysis.Source),
		Category:       string(s.Analysis.Category),
		FinalScore:     s.Analysis.FinalScore,
		MetricScores:   s.Analysis.MetricScores.Map(),
		Bounty:         s.Bounty,
		FallbackReason: s.FallbackReason,
		DeveloperID:    developer,
	}
	if _, err := p.journal.Record(entry); err != nil {
		logging.FromContextOr(ctx, p.log).Warnw("failed to write scoring journal", "error", err)
	}
}

func canonicalURL(pr *provider.PullRequest, fallback string) string {
	if pr != nil && pr.URL != "" {
		return pr.URL
	}
	return strings.TrimSpace(fallback)
}
