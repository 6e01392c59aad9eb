package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/drewdunne/prbounty/internal/bounty"
	"github.com/drewdunne/prbounty/internal/config"
	"github.com/drewdunne/prbounty/internal/event"
	"github.com/drewdunne/prbounty/internal/logging"
	_ "github.com/drewdunne/prbounty/internal/oracle/api"
	_ "github.com/drewdunne/prbounty/internal/oracle/gemini"
	"github.com/drewdunne/prbounty/internal/pipeline"
	"github.com/drewdunne/prbounty/internal/server"
	"github.com/drewdunne/prbounty/internal/store"
	"github.com/drewdunne/prbounty/internal/store/postgres"
)

var version = "0.1.0"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "prbounty:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	configFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Value: "config.yaml",
			Usage: "Path to config file",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Path to .env file (optional)",
		},
	}

	return &cli.Command{
		Name:    "prbounty",
		Usage:   "score merged pull requests and pay their bounties once",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the API and webhook server",
				Flags:  configFlags,
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Flags:  configFlags,
				Action: runMigrate,
			},
			{
				Name:      "score",
				Usage:     "Validate and score a pull request without claiming it",
				ArgsUsage: "<pr-url>",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "project", Usage: "Project ID", Required: true},
					&cli.StringFlag{Name: "user", Usage: "Handle of the pull request author", Required: true},
					&cli.StringFlag{Name: "token", Usage: "Platform token used instead of the configured one"},
				}, configFlags...),
				Action: runScore,
			},
			{
				Name:  "project",
				Usage: "Manage projects",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Register a repository with its bounty range",
						Flags: append([]cli.Flag{
							&cli.StringFlag{Name: "repo", Usage: "Repository identifier, host/owner/repo", Required: true},
							&cli.FloatFlag{Name: "lowest", Usage: "Lowest bounty", Required: true},
							&cli.FloatFlag{Name: "highest", Usage: "Highest bounty", Required: true},
						}, configFlags...),
						Action: runProjectAdd,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("prbounty v%s\n", version)
					return nil
				},
			},
		},
	}
}

// loadConfig loads the env file, or the default ones, then the config.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if envFile := cmd.String("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not load env file %s: %v\n", envFile, err)
		}
	} else {
		// Try default locations
		_ = godotenv.Load(".env")
		_ = godotenv.Load("/etc/prbounty/prbounty.env")
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	if cfg.Logging.Dir != "" && cfg.Logging.RetentionDays > 0 {
		scheduler := logging.NewCleanupScheduler(logging.NewCleaner(cfg.Logging.Dir, cfg.Logging.RetentionDays), time.Hour, log)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	var recorder *event.Recorder
	if cfg.Webhooks.Enabled {
		recorder = event.NewRecorder(app.store, time.Duration(cfg.Webhooks.DebounceSeconds)*time.Second, log)
		recorder.StartCleanup(ctx, time.Minute)
	}

	srv := server.New(cfg, server.Deps{
		Store:    app.store,
		Pipeline: app.pipeline,
		Recorder: recorder,
		Log:      log,
	})
	return srv.ListenAndServeWithShutdown(ctx)
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate requires the %s driver, got %q", config.DriverPostgres, cfg.Database.Driver)
	}
	if err := postgres.Migrate(ctx, cfg.Database); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

func runScore(ctx context.Context, cmd *cli.Command) error {
	prURL := cmd.Args().First()
	if prURL == "" {
		return fmt.Errorf("usage: prbounty score <pr-url> --project ID --user HANDLE")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	scored, err := app.pipeline.ValidateAndScore(ctx, pipeline.ScoreRequest{
		PRURL:      prURL,
		ProjectID:  cmd.String("project"),
		UserHandle: cmd.String("user"),
		Token:      cmd.String("token"),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(scored)
}

func runProjectAdd(ctx context.Context, cmd *cli.Command) error {
	lowest, highest := cmd.Float("lowest"), cmd.Float("highest")
	if err := bounty.ValidateRange(lowest, highest); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("projects persist only with the %s driver", config.DriverPostgres)
	}
	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	p := &store.Project{RepoIdentifier: cmd.String("repo"), LowestBounty: lowest, HighestBounty: highest}
	if err := s.CreateProject(ctx, p); err != nil {
		return fmt.Errorf("creating project: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
