package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drewdunne/prbounty/internal/store"
	"github.com/drewdunne/prbounty/internal/webhook"
)

// Recorder stores merged pull requests of registered projects as open
// claimable units. Recording is best effort: claims never depend on it.
type Recorder struct {
	store     store.Store
	debouncer *Debouncer
	log       *zap.SugaredLogger
}

// NewRecorder creates a Recorder. A zero window falls back to ten seconds.
func NewRecorder(s store.Store, window time.Duration, log *zap.SugaredLogger) *Recorder {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &Recorder{
		store:     s,
		debouncer: NewDebouncer(window),
		log:       log.Named("event"),
	}
}

// Record stores e unless it was just seen or its repository has no
// project.
func (r *Recorder) Record(ctx context.Context, e *Event) error {
	if !r.debouncer.ShouldProcess(e) {
		r.log.Debugw("event debounced", "key", e.Key())
		return fmt.Errorf("%w: debounced", webhook.ErrIgnored)
	}

	project, err := r.store.FindProjectByRepository(ctx, e.RepoIdentifier())
	if errors.Is(err, store.ErrNotFound) {
		r.log.Debugw("no project for repository", "repo", e.RepoIdentifier())
		return fmt.Errorf("%w: unregistered repository", webhook.ErrIgnored)
	}
	if err != nil {
		r.debouncer.Forget(e)
		return fmt.Errorf("finding project: %w", err)
	}

	inserted, err := r.store.RecordMergedPullRequest(ctx, &store.ClaimableUnit{
		ProjectID: project.ID,
		PRNumber:  e.Number,
		PRURL:     e.URL,
		Merged:    store.Ptr(true),
	})
	if err != nil {
		r.debouncer.Forget(e)
		return fmt.Errorf("recording merged pull request: %w", err)
	}

	r.log.Infow("merged pull request recorded",
		"project_id", project.ID,
		"pr", e.Number,
		"url", e.URL,
		"inserted", inserted,
	)
	return nil
}

// HandleGitHub is a webhook.GitHubEventHandler.
func (r *Recorder) HandleGitHub(ctx context.Context, ghEvent *webhook.GitHubEvent) error {
	e, err := NormalizeGitHubEvent(ghEvent)
	if err != nil {
		return r.rejected(err)
	}
	return r.Record(ctx, e)
}

// HandleGitLab is a webhook.GitLabEventHandler.
func (r *Recorder) HandleGitLab(ctx context.Context, glEvent *webhook.GitLabEvent) error {
	e, err := NormalizeGitLabEvent(glEvent)
	if err != nil {
		return r.rejected(err)
	}
	return r.Record(ctx, e)
}

// rejected logs a delivery that cannot be normalized. Malformed payloads
// are acknowledged too; redelivering them would not help.
func (r *Recorder) rejected(err error) error {
	if errors.Is(err, webhook.ErrIgnored) {
		return err
	}
	r.log.Warnw("unusable webhook payload", "error", err)
	return fmt.Errorf("%w: %v", webhook.ErrIgnored, err)
}

// StartCleanup prunes the debouncer every interval until ctx is done.
func (r *Recorder) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.debouncer.Cleanup()
			}
		}
	}()
}
