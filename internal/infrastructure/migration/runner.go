// Package migration applies the versioned schema migrations for the selected
// engine and recovers from the benign race where two instances migrate
// concurrently and one loses with a "table already exists" failure.
package migration

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"ticketd/internal/infrastructure/database"
	apperrors "ticketd/internal/shared/errors"
	"ticketd/internal/shared/logger"
)

//go:embed scripts/mysql/*.sql scripts/postgres/*.sql scripts/sqlite/*.sql
var scriptsFS embed.FS

// gooseMu serializes use of goose's process-global dialect and base FS so
// concurrent runners in one process cannot clobber each other's setup. The
// cross-process race is handled by conflict recovery instead.
var gooseMu sync.Mutex

// Runner applies pending migrations against one engine.
type Runner struct {
	db     *gorm.DB
	engine *database.Engine
	logger logger.Interface
}

func NewRunner(db *gorm.DB, engine *database.Engine) *Runner {
	return &Runner{
		db:     db,
		engine: engine,
		logger: logger.NewLoggerWithSlog(logger.WithComponent("migration")),
	}
}

func (r *Runner) dir() string {
	return "scripts/" + r.engine.Name
}

// Apply brings the schema up to date. A migration failure matching the
// engine's duplicate-table signature means another instance already ran the
// DDL; recovery marks the pending versions applied by inserting history rows
// directly instead of re-running schema changes. Any other failure is fatal
// to startup. Cancellation is honored between discrete steps.
func (r *Runner) Apply(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return apperrors.NewPersistenceError("failed to get underlying sql.DB", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.NewPersistenceError("database unreachable", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(scriptsFS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(r.engine.GooseDialect); err != nil {
		return apperrors.NewPersistenceError("failed to set migration dialect", err)
	}

	r.logger.Infow("applying migrations", "engine", r.engine.Name)

	if err := goose.UpContext(ctx, sqlDB, r.dir()); err != nil {
		if r.engine.IsDuplicateTableError(err) {
			r.logger.Warnw("migration target already exists, marking pending versions applied",
				"engine", r.engine.Name, "error", err)
			return r.recoverConflict(ctx)
		}
		return apperrors.NewPersistenceError("migration failed", err)
	}

	r.logger.Infow("migrations up to date", "engine", r.engine.Name)
	return nil
}

// recoverConflict records the pending migration versions as applied without
// re-running their DDL. The insert is guarded so concurrent recovery leaves
// exactly one history row per version.
func (r *Runner) recoverConflict(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return apperrors.NewPersistenceError("failed to get underlying sql.DB", err)
	}

	current, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return apperrors.NewPersistenceError("failed to read migration version", err)
	}

	migrations, err := goose.CollectMigrations(r.dir(), 0, goose.MaxVersion)
	if err != nil {
		return apperrors.NewPersistenceError("failed to collect migrations", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.db.WithContext(ctx).
			Exec(r.engine.MarkMigrationApplied, m.Version, m.Version).Error; err != nil {
			return apperrors.NewPersistenceError(
				fmt.Sprintf("failed to mark migration %d applied", m.Version), err)
		}
		r.logger.Infow("marked migration applied", "version", m.Version)
	}

	return nil
}

// Status returns the applied and latest available migration versions.
func (r *Runner) Status(ctx context.Context) (applied int64, latest int64, err error) {
	sqlDB, err := r.db.DB()
	if err != nil {
		return 0, 0, apperrors.NewPersistenceError("failed to get underlying sql.DB", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(scriptsFS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(r.engine.GooseDialect); err != nil {
		return 0, 0, apperrors.NewPersistenceError("failed to set migration dialect", err)
	}

	applied, err = goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, 0, apperrors.NewPersistenceError("failed to read migration version", err)
	}

	migrations, err := goose.CollectMigrations(r.dir(), 0, goose.MaxVersion)
	if err != nil {
		return 0, 0, apperrors.NewPersistenceError("failed to collect migrations", err)
	}
	for _, m := range migrations {
		if m.Version > latest {
			latest = m.Version
		}
	}

	return applied, latest, nil
}
