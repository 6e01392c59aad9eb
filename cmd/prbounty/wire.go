package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/drewdunne/prbounty/internal/config"
	"github.com/drewdunne/prbounty/internal/ledger"
	"github.com/drewdunne/prbounty/internal/logging"
	"github.com/drewdunne/prbounty/internal/oracle"
	"github.com/drewdunne/prbounty/internal/pipeline"
	"github.com/drewdunne/prbounty/internal/registry"
	"github.com/drewdunne/prbounty/internal/scoring"
	"github.com/drewdunne/prbounty/internal/signal"
	"github.com/drewdunne/prbounty/internal/store"
	"github.com/drewdunne/prbounty/internal/store/memory"
	"github.com/drewdunne/prbounty/internal/store/postgres"
)

// app holds the long-lived collaborators built from a config.
type app struct {
	store    store.Store
	pipeline *pipeline.Pipeline
}

func (a *app) close() {
	a.store.Close()
}

// openStore opens the configured claim store.
func openStore(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if err := postgres.Migrate(ctx, cfg.Database); err != nil {
			return nil, err
		}
		return postgres.Open(ctx, log, cfg.Database)
	case config.DriverMemory:
		log.Warnw("using in-memory store; claims are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// build wires the pipeline for cfg.
func build(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*app, error) {
	engine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}

	client, err := oracle.NewClient(ctx, cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}

	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := seedProjects(ctx, s, cfg.Projects, log); err != nil {
		s.Close()
		return nil, err
	}

	var journal *logging.Writer
	if cfg.Logging.Dir != "" {
		journal = logging.NewWriter(cfg.Logging.Dir)
	}

	sources := registry.New(cfg)
	p := pipeline.New(pipeline.Deps{
		Store:      s,
		Sources:    sources,
		Aggregator: signal.NewAggregator(cfg.Aggregator.OptionalTimeout, log),
		Engine:     engine,
		Oracle:     oracle.NewAdapter(client, cfg.Oracle.Timeout, log),
		Ledger:     ledger.New(s, log),
		Journal:    journal,
		Log:        log,
	})

	log.Infow("pipeline ready",
		"store", cfg.Database.Driver,
		"oracle", cfg.Oracle.Strategy,
		"hosts", sources.List(),
	)
	return &app{store: s, pipeline: p}, nil
}

// seedProjects registers configured projects whose repository has none.
func seedProjects(ctx context.Context, s store.Store, projects []config.ProjectConfig, log *zap.SugaredLogger) error {
	for _, pc := range projects {
		existing, err := s.FindProjectByRepository(ctx, pc.Repo)
		if err == nil {
			log.Debugw("project already registered", "project_id", existing.ID, "repo", existing.RepoIdentifier)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("looking up project %s: %w", pc.Repo, err)
		}

		p := &store.Project{ID: pc.ID, RepoIdentifier: pc.Repo, LowestBounty: pc.LowestBounty, HighestBounty: pc.HighestBounty}
		if err := s.CreateProject(ctx, p); err != nil {
			return fmt.Errorf("registering project %s: %w", pc.Repo, err)
		}
		log.Infow("project registered from config", "project_id", p.ID, "repo", p.RepoIdentifier)
	}
	return nil
}
