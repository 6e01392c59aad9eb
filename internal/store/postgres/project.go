package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/drewdunne/prbounty/internal/store"
)

const (
	insertProjectQuery = `INSERT INTO projects(id, repo_identifier, lowest_bounty, highest_bounty)
		VALUES ($1,$2,$3,$4) RETURNING created_at`
	selectProjectQuery = `SELECT id, repo_identifier, lowest_bounty, highest_bounty, created_at
		FROM projects WHERE id=$1`
	selectProjectByRepoQuery = `SELECT id, repo_identifier, lowest_bounty, highest_bounty, created_at
		FROM projects WHERE LOWER(repo_identifier)=LOWER($1)`
)

// CreateProject registers a repository.
func (p *Postgres) CreateProject(ctx context.Context, proj *store.Project) error {
	if proj.LowestBounty <= 0 || proj.LowestBounty >= proj.HighestBounty {
		return fmt.Errorf("invalid bounty range [%v, %v]", proj.LowestBounty, proj.HighestBounty)
	}
	if proj.ID == "" {
		proj.ID = uuid.NewString()
	}
	proj.RepoIdentifier = store.NormalizeRepoIdentifier(proj.RepoIdentifier)

	err := p.db.QueryRow(ctx, insertProjectQuery, proj.ID, proj.RepoIdentifier, proj.LowestBounty, proj.HighestBounty).
		Scan(&proj.CreatedAt)
	if err != nil {
		p.log.Errorw("failed to insert project", "error", err, "repo", proj.RepoIdentifier)
		return mapErr(fmt.Errorf("insert project: %w", err))
	}
	p.log.Infow("project created", "project_id", proj.ID, "repo", proj.RepoIdentifier)
	return nil
}

// GetProject loads a project by id.
func (p *Postgres) GetProject(ctx context.Context, id string) (*store.Project, error) {
	return scanProject(p.db.QueryRow(ctx, selectProjectQuery, id))
}

// FindProjectByRepository loads the project for a host/owner/repo
// identifier, ignoring case.
func (p *Postgres) FindProjectByRepository(ctx context.Context, repoIdentifier string) (*store.Project, error) {
	return scanProject(p.db.QueryRow(ctx, selectProjectByRepoQuery, store.NormalizeRepoIdentifier(repoIdentifier)))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*store.Project, error) {
	var proj store.Project
	if err := row.Scan(&proj.ID, &proj.RepoIdentifier, &proj.LowestBounty, &proj.HighestBounty, &proj.CreatedAt); err != nil {
		return nil, mapErr(fmt.Errorf("select project: %w", err))
	}
	return &proj, nil
}
