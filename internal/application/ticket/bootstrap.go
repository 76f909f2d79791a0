package ticket

import (
	"context"
	"time"

	domain "ticketd/internal/domain/ticket"
	"ticketd/internal/shared/logger"
	"ticketd/internal/shared/readiness"
)

// probeAttempts bounds the post-migration connectivity probe. The database
// already answered during migration in the common path, so this only rides
// out brief blips.
const (
	probeAttempts = 3
	probeInterval = 500 * time.Millisecond
)

// Bootstrapper runs the startup sequence: apply migrations, probe
// connectivity, then open the readiness gate. It is the only writer of the
// readiness flag; request handling lives in Service.
type Bootstrapper struct {
	migrator Migrator // nil skips the migration step
	repo     domain.Repository
	state    *readiness.State
	logger   logger.Interface
}

func NewBootstrapper(migrator Migrator, repo domain.Repository, state *readiness.State, log logger.Interface) *Bootstrapper {
	return &Bootstrapper{
		migrator: migrator,
		repo:     repo,
		state:    state,
		logger:   log,
	}
}

// Run executes the startup sequence. Any error is fatal to startup; the
// readiness gate stays closed and callers keep receiving unavailable
// responses. Cancellation is honored between discrete steps.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if b.migrator != nil {
		if err := b.migrator.Apply(ctx); err != nil {
			b.logger.Errorw("startup migration failed", "error", err)
			return err
		}
	}

	var probeErr error
	for attempt := 1; attempt <= probeAttempts; attempt++ {
		if probeErr = ctx.Err(); probeErr != nil {
			return probeErr
		}
		if probeErr = b.repo.Ping(ctx); probeErr == nil {
			break
		}
		b.logger.Warnw("connectivity probe failed", "attempt", attempt, "error", probeErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(probeInterval):
		}
	}
	if probeErr != nil {
		b.logger.Errorw("backing store unreachable, startup aborted", "error", probeErr)
		return probeErr
	}

	b.state.MarkReady()
	b.logger.Infow("startup complete, accepting requests")
	return nil
}
