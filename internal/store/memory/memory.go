// Package memory is an in-process store. Transactions are serialized and
// staged on a copy of the state, so a failed transaction leaves nothing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drewdunne/prbounty/internal/store"
)

var _ store.Store = (*Store)(nil)

type state struct {
	projects map[string]store.Project
	units    map[string]store.ClaimableUnit
	payouts  []store.PayoutRecord
}

func (s *state) clone() *state {
	out := &state{
		projects: make(map[string]store.Project, len(s.projects)),
		units:    make(map[string]store.ClaimableUnit, len(s.units)),
		payouts:  append([]store.PayoutRecord(nil), s.payouts...),
	}
	for id, p := range s.projects {
		out.projects[id] = p
	}
	for id, u := range s.units {
		out.units[id] = u.Clone()
	}
	return out
}

// Store keeps projects, units and payouts in memory.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		state: &state{
			projects: make(map[string]store.Project),
			units:    make(map[string]store.ClaimableUnit),
		},
		now: time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

func (s *Store) CreateProject(_ context.Context, p *store.Project) error {
	if p.LowestBounty <= 0 || p.LowestBounty >= p.HighestBounty {
		return fmt.Errorf("invalid bounty range [%v, %v]", p.LowestBounty, p.HighestBounty)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.RepoIdentifier = store.NormalizeRepoIdentifier(p.RepoIdentifier)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for _, existing := range s.state.projects {
		if existing.ID == p.ID || existing.RepoIdentifier == p.RepoIdentifier {
			return fmt.Errorf("project %s: %w", p.RepoIdentifier, store.ErrConflict)
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	s.state.projects[p.ID] = *p
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*store.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) FindProjectByRepository(_ context.Context, repoIdentifier string) (*store.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := store.NormalizeRepoIdentifier(repoIdentifier)
	for _, p := range s.state.projects {
		if p.RepoIdentifier == want {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("project for %s: %w", want, store.ErrNotFound)
}

func (s *Store) GetClaimableUnit(ctx context.Context, key store.UnitKey) (*store.ClaimableUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{state: s.state}).GetClaimableUnit(ctx, key)
}

func (s *Store) FindClaimableUnitsByURL(ctx context.Context, prURL string) ([]store.ClaimableUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{state: s.state}).FindClaimableUnitsByURL(ctx, prURL)
}

func (s *Store) RecordMergedPullRequest(ctx context.Context, u *store.ClaimableUnit) (bool, error) {
	var inserted bool
	err := s.WithinTx(ctx, func(t store.Tx) error {
		existing, err := t.FindClaimableUnitsByURL(ctx, u.PRURL)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		inserted, err = t.InsertClaimableUnit(ctx, u)
		return err
	})
	return inserted, err
}

func (s *Store) ListPayoutRecords(_ context.Context, projectID string) ([]store.PayoutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.PayoutRecord
	for _, p := range s.state.payouts {
		if projectID == "" || p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	return out, nil
}

// WithinTx holds the store lock for the whole of fn and publishes the
// staged state only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := &tx{state: s.state.clone(), now: s.now}
	if err := fn(staged); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = staged.state
	return nil
}

type tx struct {
	state *state
	now   func() time.Time
}

func (t *tx) GetClaimableUnit(_ context.Context, key store.UnitKey) (*store.ClaimableUnit, error) {
	for _, u := range t.state.units {
		if u.Key() == key {
			c := u.Clone()
			return &c, nil
		}
	}
	return nil, fmt.Errorf("unit %s#%d: %w", key.ProjectID, key.PRNumber, store.ErrNotFound)
}

func (t *tx) FindClaimableUnitsByURL(_ context.Context, prURL string) ([]store.ClaimableUnit, error) {
	var out []store.ClaimableUnit
	for _, u := range t.state.units {
		if u.PRURL == prURL {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) InsertClaimableUnit(_ context.Context, u *store.ClaimableUnit) (bool, error) {
	for _, existing := range t.state.units {
		if existing.Key() == u.Key() {
			return false, nil
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, ok := t.state.units[u.ID]; ok {
		return false, fmt.Errorf("unit %s: %w", u.ID, store.ErrConflict)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t.now().UTC()
	}
	t.state.units[u.ID] = u.Clone()
	return true, nil
}

func (t *tx) MarkClaimed(_ context.Context, unitID string, upd store.ClaimUpdate) (bool, error) {
	u, ok := t.state.units[unitID]
	if !ok {
		return false, fmt.Errorf("unit %s: %w", unitID, store.ErrNotFound)
	}
	if u.BountyClaimed {
		return false, nil
	}

	u.BountyClaimed = true
	u.Merged = store.Ptr(true)
	u.ClaimedBy = store.Ptr(upd.ClaimedBy)
	u.ClaimedAt = store.Ptr(upd.ClaimedAt)
	u.Score = store.Ptr(upd.Score)
	u.BountyAmount = store.Ptr(upd.BountyAmount)
	u.AmountPaid = store.Ptr(upd.AmountPaid)
	t.state.units[unitID] = u
	return true, nil
}

func (t *tx) CreatePayoutRecord(_ context.Context, p *store.PayoutRecord) error {
	for _, existing := range t.state.payouts {
		if existing.ID == p.ID || existing.UnitID == p.UnitID {
			return fmt.Errorf("payout for unit %s: %w", p.UnitID, store.ErrConflict)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now().UTC()
	}
	t.state.payouts = append(t.state.payouts, *p)
	return nil
}
