// Package ledger records one-time bounty claims.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drewdunne/prbounty/internal/store"
)

var (
	// ErrAlreadyClaimed is matched by *AlreadyClaimedError.
	ErrAlreadyClaimed = errors.New("bounty already claimed")
	// ErrInvalidAmount is returned for non-positive or non-finite amounts.
	ErrInvalidAmount = errors.New("invalid bounty amount")
	// ErrStorageConflict is returned when the store aborted the claim
	// because of a concurrent writer.
	ErrStorageConflict = errors.New("storage conflict")
)

// AlreadyClaimedError describes the existing claim.
type AlreadyClaimedError struct {
	ClaimedBy string
	Amount    float64
	ClaimedAt *time.Time
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("bounty already claimed by %s (amount %v)", e.ClaimedBy, e.Amount)
}

// Is makes errors.Is(err, ErrAlreadyClaimed) match.
func (e *AlreadyClaimedError) Is(target error) bool {
	return target == ErrAlreadyClaimed
}

func alreadyClaimed(u *store.ClaimableUnit) *AlreadyClaimedError {
	e := &AlreadyClaimedError{ClaimedBy: u.Claimant(), ClaimedAt: u.ClaimedAt}
	switch {
	case u.AmountPaid != nil:
		e.Amount = *u.AmountPaid
	case u.BountyAmount != nil:
		e.Amount = *u.BountyAmount
	}
	return e
}

// ClaimRequest is one developer's claim on a merged pull request.
type ClaimRequest struct {
	ProjectID   string
	PRNumber    int
	PRURL       string
	DeveloperID string
	Score       float64
	Amount      float64
}

// Ledger performs claims against a store.
type Ledger struct {
	store store.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

// New creates a Ledger.
func New(s store.Store, log *zap.SugaredLogger) *Ledger {
	return &Ledger{store: s, log: log.Named("ledger"), now: time.Now}
}

// Claim marks the unit for the request claimed and appends a pending
// payout, all in one transaction.
func (l *Ledger) Claim(ctx context.Context, req ClaimRequest) (*store.PayoutRecord, error) {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, req.Amount)
	}
	if strings.TrimSpace(req.DeveloperID) == "" {
		return nil, errors.New("developer id is required")
	}

	key := store.UnitKey{ProjectID: req.ProjectID, PRNumber: req.PRNumber}
	var payout *store.PayoutRecord

	err := l.store.WithinTx(ctx, func(tx store.Tx) error {
		unit, err := l.resolve(ctx, tx, key, req)
		if err != nil {
			return err
		}

		upd := store.ClaimUpdate{
			ClaimedBy:    req.DeveloperID,
			ClaimedAt:    l.now().UTC(),
			Score:        req.Score,
			BountyAmount: req.Amount,
			AmountPaid:   req.Amount,
		}
		ok, err := tx.MarkClaimed(ctx, unit.ID, upd)
		if err != nil {
			return err
		}
		if !ok {
			current, err := tx.GetClaimableUnit(ctx, unit.Key())
			if err != nil {
				return err
			}
			return alreadyClaimed(current)
		}

		payout = &store.PayoutRecord{
			Amount:      req.Amount,
			DeveloperID: req.DeveloperID,
			ProjectID:   req.ProjectID,
			UnitID:      unit.ID,
			Status:      store.PayoutPending,
		}
		return tx.CreatePayoutRecord(ctx, payout)
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrStorageConflict, err)
		}
		return nil, err
	}

	l.log.Infow("bounty claimed",
		"project_id", req.ProjectID,
		"pr", req.PRNumber,
		"developer_id", req.DeveloperID,
		"amount", req.Amount,
		"payout_id", payout.ID,
	)
	return payout, nil
}

// resolve returns the unit the claim will mark, creating it if needed.
func (l *Ledger) resolve(ctx context.Context, tx store.Tx, key store.UnitKey, req ClaimRequest) (*store.ClaimableUnit, error) {
	exact, err := tx.GetClaimableUnit(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var byURL []store.ClaimableUnit
	if exact == nil && req.PRURL != "" {
		byURL, err = tx.FindClaimableUnitsByURL(ctx, req.PRURL)
		if err != nil {
			return nil, err
		}
	}

	res := ResolveKey(req.DeveloperID, exact, byURL)
	l.log.Debugw("claim key resolved", "project_id", key.ProjectID, "pr", key.PRNumber, "action", res.Action.String())

	switch res.Action {
	case ActionAlreadyClaimed:
		return nil, alreadyClaimed(res.Unit)
	case ActionAttach:
		return res.Unit, nil
	}

	unit := &store.ClaimableUnit{
		ProjectID:    key.ProjectID,
		PRNumber:     key.PRNumber,
		PRURL:        req.PRURL,
		Merged:       store.Ptr(true),
		Score:        store.Ptr(req.Score),
		BountyAmount: store.Ptr(req.Amount),
	}
	inserted, err := tx.InsertClaimableUnit(ctx, unit)
	if err != nil {
		return nil, err
	}
	if inserted {
		return unit, nil
	}

	// A concurrent transaction created the key first.
	existing, err := tx.GetClaimableUnit(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing.BountyClaimed {
		return nil, alreadyClaimed(existing)
	}
	return existing, nil
}

// State returns the unit a claim for the key or URL would resolve to,
// or store.ErrNotFound.
func (l *Ledger) State(ctx context.Context, projectID string, prNumber int, prURL string) (*store.ClaimableUnit, error) {
	if projectID != "" && prNumber > 0 {
		u, err := l.store.GetClaimableUnit(ctx, store.UnitKey{ProjectID: projectID, PRNumber: prNumber})
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return u, err
		}
	}
	if prURL == "" {
		return nil, fmt.Errorf("claim state: %w", store.ErrNotFound)
	}

	units, err := l.store.FindClaimableUnitsByURL(ctx, prURL)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("claim state for %s: %w", prURL, store.ErrNotFound)
	}
	for i := range units {
		if units[i].BountyClaimed {
			return &units[i], nil
		}
	}
	return &units[0], nil
}

// AlreadyClaimedFrom builds the rejection for a claimed unit, or returns
// nil if the unit is still open.
func AlreadyClaimedFrom(u *store.ClaimableUnit) error {
	if u == nil || !u.BountyClaimed {
		return nil
	}
	return alreadyClaimed(u)
}
