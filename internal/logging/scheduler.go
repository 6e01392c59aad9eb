package logging

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CleanupScheduler runs a Cleaner once at start and then on every
// interval until its context ends or Stop is called.
type CleanupScheduler struct {
	cleaner  *Cleaner
	interval time.Duration
	log      *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewCleanupScheduler(cleaner *Cleaner, interval time.Duration, log *zap.SugaredLogger) *CleanupScheduler {
	return &CleanupScheduler{
		cleaner:  cleaner,
		interval: interval,
		log:      log.Named("journal.cleanup"),
		done:     make(chan struct{}),
	}
}

// Start launches the cleanup loop. It must be called at most once.
func (s *CleanupScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runCleanup()
		for {
			select {
			case <-ticker.C:
				s.runCleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *CleanupScheduler) runCleanup() {
	deleted, err := s.cleaner.Cleanup()
	if err != nil {
		s.log.Warnw("journal cleanup failed", "error", err)
	}
	if deleted > 0 {
		s.log.Infow("removed expired journals", "deleted", deleted)
	}
}

// Stop ends the loop and waits for a running cleanup to finish. Stopping
// a scheduler that was never started is a no-op.
func (s *CleanupScheduler) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}
