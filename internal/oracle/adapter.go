package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drewdunne/prbounty/internal/scoring"
	"github.com/drewdunne/prbounty/internal/signal"
)

// ErrDisabled is returned by TryOracle when no oracle is configured.
var ErrDisabled = errors.New("oracle disabled")

// Adapter consults the oracle under a timeout. Its failures are never
// fatal: callers keep the local analysis.
type Adapter struct {
	client  Client
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewAdapter creates an Adapter. A nil client disables the oracle.
func NewAdapter(client Client, timeout time.Duration, log *zap.SugaredLogger) *Adapter {
	return &Adapter{
		client:  client,
		timeout: timeout,
		log:     log.Named("oracle"),
	}
}

// Enabled reports whether an oracle is configured.
func (a *Adapter) Enabled() bool {
	return a != nil && a.client != nil
}

// TryOracle asks the oracle to categorize sig. The answer is checked against
// cfg's thresholds. On any failure it returns a nil analysis and the reason;
// the caller then uses local.
func (a *Adapter) TryOracle(ctx context.Context, sig *signal.PullRequestSignal, local scoring.Analysis, cfg scoring.Config) (*scoring.Analysis, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := a.client.Categorize(ctx, NewRequest(sig, local, cfg))
	if err != nil {
		a.log.Warnw("oracle request failed", "pr", sig.Number, "error", err)
		return nil, fmt.Errorf("oracle request: %w", err)
	}

	analysis, err := Normalize(body, cfg.Thresholds)
	if err != nil {
		a.log.Warnw("oracle response rejected", "pr", sig.Number, "error", err)
		return nil, err
	}

	return analysis, nil
}
