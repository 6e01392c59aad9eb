package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/drewdunne/prbounty/internal/store"
)

const (
	unitColumns = `id, project_id, pr_number, pr_url, merged, bounty_claimed, score, bounty_amount,
		claimed_at, claimed_by, amount_paid, created_at`

	selectUnitByKeyQuery = `SELECT ` + unitColumns + ` FROM claimable_units WHERE project_id=$1 AND pr_number=$2`
	selectUnitsByURLQuery = `SELECT ` + unitColumns + ` FROM claimable_units WHERE pr_url=$1
		ORDER BY created_at, id`
	insertUnitQuery = `INSERT INTO claimable_units(id, project_id, pr_number, pr_url, merged, bounty_claimed, score, bounty_amount)
		VALUES ($1,$2,$3,$4,$5,false,$6,$7)
		ON CONFLICT (project_id, pr_number) DO NOTHING
		RETURNING created_at`
	recordMergedQuery = `INSERT INTO claimable_units(id, project_id, pr_number, pr_url, merged, bounty_claimed)
		SELECT $1::text, $2::text, $3::integer, $4::text, true, false
		WHERE NOT EXISTS (SELECT 1 FROM claimable_units WHERE pr_url=$4::text)
		ON CONFLICT (project_id, pr_number) DO NOTHING`
	markClaimedQuery = `UPDATE claimable_units
		SET bounty_claimed=true, merged=true, claimed_by=$2, claimed_at=$3, score=$4, bounty_amount=$5, amount_paid=$6
		WHERE id=$1 AND bounty_claimed=false`
	insertPayoutQuery = `INSERT INTO payout_records(id, amount, developer_id, project_id, unit_id, status)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`
	selectPayoutsQuery = `SELECT id, amount, developer_id, project_id, unit_id, status, created_at
		FROM payout_records WHERE ($1::text='' OR project_id=$1::text) ORDER BY created_at, id`
)

// GetClaimableUnit loads a unit by key.
func (p *Postgres) GetClaimableUnit(ctx context.Context, key store.UnitKey) (*store.ClaimableUnit, error) {
	return getUnit(ctx, p.db, key)
}

// FindClaimableUnitsByURL lists units for a pull request URL, oldest first.
func (p *Postgres) FindClaimableUnitsByURL(ctx context.Context, prURL string) ([]store.ClaimableUnit, error) {
	return findUnits(ctx, p.db, prURL)
}

// RecordMergedPullRequest inserts an open unit unless the key or URL is
// already recorded.
func (p *Postgres) RecordMergedPullRequest(ctx context.Context, u *store.ClaimableUnit) (bool, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	tag, err := p.db.Exec(ctx, recordMergedQuery, u.ID, u.ProjectID, u.PRNumber, u.PRURL)
	if err != nil {
		p.log.Errorw("failed to record merged pull request", "error", err, "pr_url", u.PRURL)
		return false, mapErr(fmt.Errorf("record merged pr: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListPayoutRecords lists payouts for a project, or all when projectID is
// empty.
func (p *Postgres) ListPayoutRecords(ctx context.Context, projectID string) ([]store.PayoutRecord, error) {
	rows, err := p.db.Query(ctx, selectPayoutsQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("select payouts: %w", err)
	}
	defer rows.Close()

	var out []store.PayoutRecord
	for rows.Next() {
		var rec store.PayoutRecord
		if err := rows.Scan(&rec.ID, &rec.Amount, &rec.DeveloperID, &rec.ProjectID, &rec.UnitID, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetClaimableUnit(ctx context.Context, key store.UnitKey) (*store.ClaimableUnit, error) {
	return getUnit(ctx, t.tx, key)
}

func (t *pgTx) FindClaimableUnitsByURL(ctx context.Context, prURL string) ([]store.ClaimableUnit, error) {
	return findUnits(ctx, t.tx, prURL)
}

func (t *pgTx) InsertClaimableUnit(ctx context.Context, u *store.ClaimableUnit) (bool, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, insertUnitQuery, u.ID, u.ProjectID, u.PRNumber, u.PRURL, u.Merged, u.Score, u.BountyAmount).
		Scan(&u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(fmt.Errorf("insert unit: %w", err))
	}
	return true, nil
}

func (t *pgTx) MarkClaimed(ctx context.Context, unitID string, upd store.ClaimUpdate) (bool, error) {
	tag, err := t.tx.Exec(ctx, markClaimedQuery, unitID, upd.ClaimedBy, upd.ClaimedAt, upd.Score, upd.BountyAmount, upd.AmountPaid)
	if err != nil {
		return false, mapErr(fmt.Errorf("mark claimed: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) CreatePayoutRecord(ctx context.Context, rec *store.PayoutRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, insertPayoutQuery, rec.ID, rec.Amount, rec.DeveloperID, rec.ProjectID, rec.UnitID, rec.Status).
		Scan(&rec.CreatedAt)
	if err != nil {
		return mapErr(fmt.Errorf("insert payout: %w", err))
	}
	return nil
}

func getUnit(ctx context.Context, q querier, key store.UnitKey) (*store.ClaimableUnit, error) {
	u, err := scanUnit(q.QueryRow(ctx, selectUnitByKeyQuery, key.ProjectID, key.PRNumber))
	if err != nil {
		return nil, mapErr(fmt.Errorf("select unit %s#%d: %w", key.ProjectID, key.PRNumber, err))
	}
	return u, nil
}

func findUnits(ctx context.Context, q querier, prURL string) ([]store.ClaimableUnit, error) {
	rows, err := q.Query(ctx, selectUnitsByURLQuery, prURL)
	if err != nil {
		return nil, fmt.Errorf("select units by url: %w", err)
	}
	defer rows.Close()

	var out []store.ClaimableUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func scanUnit(row rowScanner) (*store.ClaimableUnit, error) {
	var u store.ClaimableUnit
	err := row.Scan(&u.ID, &u.ProjectID, &u.PRNumber, &u.PRURL, &u.Merged, &u.BountyClaimed, &u.Score,
		&u.BountyAmount, &u.ClaimedAt, &u.ClaimedBy, &u.AmountPaid, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
