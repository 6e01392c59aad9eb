// Package store defines the persistent records of the bounty ledger and
// the interfaces their backends implement.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on unique violations and serialization
	// failures.
	ErrConflict = errors.New("storage conflict")
)

// Project is a registered repository with a bounty range.
type Project struct {
	ID             string    `json:"id"`
	RepoIdentifier string    `json:"repo_identifier"`
	LowestBounty   float64   `json:"lowest_bounty"`
	HighestBounty  float64   `json:"highest_bounty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NormalizeRepoIdentifier lower-cases a host/owner/repo identifier and
// trims surrounding slashes.
func NormalizeRepoIdentifier(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), "/")
}

// UnitKey identifies a claimable unit within a project.
type UnitKey struct {
	ProjectID string
	PRNumber  int
}

// ClaimableUnit is one merged pull request that may pay out once. Nil
// optional fields were never recorded.
type ClaimableUnit struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	PRNumber      int        `json:"pr_number"`
	PRURL         string     `json:"pr_url"`
	Merged        *bool      `json:"merged,omitempty"`
	BountyClaimed bool       `json:"bounty_claimed"`
	Score         *float64   `json:"score,omitempty"`
	BountyAmount  *float64   `json:"bounty_amount,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	ClaimedBy     *string    `json:"claimed_by,omitempty"`
	AmountPaid    *float64   `json:"amount_paid,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Key returns the unit's primary key.
func (u ClaimableUnit) Key() UnitKey {
	return UnitKey{ProjectID: u.ProjectID, PRNumber: u.PRNumber}
}

// Claimant returns who claimed the unit, or "" if nobody has.
func (u ClaimableUnit) Claimant() string {
	if u.ClaimedBy == nil {
		return ""
	}
	return *u.ClaimedBy
}

// WithDefaults returns a copy with absent merge state and amounts
// resolved to their zero values. Claim fields stay nil until claimed.
func (u ClaimableUnit) WithDefaults() ClaimableUnit {
	out := u
	if out.Merged == nil {
		out.Merged = Ptr(false)
	}
	if out.Score == nil {
		out.Score = Ptr(0.0)
	}
	if out.BountyAmount == nil {
		out.BountyAmount = Ptr(0.0)
	}
	if out.AmountPaid == nil {
		out.AmountPaid = Ptr(0.0)
	}
	return out
}

// Clone returns a deep copy.
func (u ClaimableUnit) Clone() ClaimableUnit {
	out := u
	out.Merged = clonePtr(u.Merged)
	out.Score = clonePtr(u.Score)
	out.BountyAmount = clonePtr(u.BountyAmount)
	out.ClaimedAt = clonePtr(u.ClaimedAt)
	out.ClaimedBy = clonePtr(u.ClaimedBy)
	out.AmountPaid = clonePtr(u.AmountPaid)
	return out
}

// PayoutStatus is the lifecycle state of a payout.
type PayoutStatus string

// PayoutPending is the state every payout is created in.
const PayoutPending PayoutStatus = "pending"

// PayoutRecord is an append-only record of an owed bounty.
type PayoutRecord struct {
	ID          string       `json:"id"`
	Amount      float64      `json:"amount"`
	DeveloperID string       `json:"developer_id"`
	ProjectID   string       `json:"project_id"`
	UnitID      string       `json:"unit_id"`
	Status      PayoutStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ClaimUpdate holds the fields written when a unit is claimed.
type ClaimUpdate struct {
	ClaimedBy    string
	ClaimedAt    time.Time
	Score        float64
	BountyAmount float64
	AmountPaid   float64
}

// Store is the ledger's persistence.
type Store interface {
	Ping(ctx context.Context) error
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	FindProjectByRepository(ctx context.Context, repoIdentifier string) (*Project, error)

	GetClaimableUnit(ctx context.Context, key UnitKey) (*ClaimableUnit, error)
	// FindClaimableUnitsByURL returns units recorded for a pull request
	// URL, oldest first.
	FindClaimableUnitsByURL(ctx context.Context, prURL string) ([]ClaimableUnit, error)
	// RecordMergedPullRequest inserts an open unit unless one exists for
	// its key or URL. It reports whether a row was written.
	RecordMergedPullRequest(ctx context.Context, u *ClaimableUnit) (bool, error)
	ListPayoutRecords(ctx context.Context, projectID string) ([]PayoutRecord, error)

	// WithinTx runs fn in one transaction, committing only if fn returns nil.
	WithinTx(ctx context.Context, fn func(Tx) error) error
	Close()
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	GetClaimableUnit(ctx context.Context, key UnitKey) (*ClaimableUnit, error)
	FindClaimableUnitsByURL(ctx context.Context, prURL string) ([]ClaimableUnit, error)
	// InsertClaimableUnit inserts u unless its key exists and reports
	// whether it did.
	InsertClaimableUnit(ctx context.Context, u *ClaimableUnit) (bool, error)
	// MarkClaimed claims an unclaimed unit. It reports false when the
	// unit was already claimed.
	MarkClaimed(ctx context.Context, unitID string, upd ClaimUpdate) (bool, error)
	CreatePayoutRecord(ctx context.Context, p *PayoutRecord) error
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
