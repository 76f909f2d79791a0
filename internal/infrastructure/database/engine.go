package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	sharedConfig "ticketd/internal/shared/config"
	apperrors "ticketd/internal/shared/errors"
)

// Engine is the capability record for one supported relational engine. All
// CRUD logic is shared; these four hooks are the only engine-specific
// surface: how to open a connection, which goose dialect to use, how to mark
// a migration version applied without re-running DDL, and how to recognize
// the engine's "table already exists" failure.
type Engine struct {
	Name         string
	GooseDialect string

	// MarkMigrationApplied inserts one migration history row for a version
	// unless one is already present. Takes the version id twice.
	MarkMigrationApplied string

	// IsDuplicateTableError reports whether the failure corresponds to a
	// duplicate-object condition for this engine.
	IsDuplicateTableError func(err error) bool

	dialector func(cfg *sharedConfig.DatabaseConfig) gorm.Dialector
}

// Dialector builds the gorm dialector for this engine from configuration.
func (e *Engine) Dialector(cfg *sharedConfig.DatabaseConfig) gorm.Dialector {
	return e.dialector(cfg)
}

var mysqlEngine = &Engine{
	Name:         "mysql",
	GooseDialect: "mysql",
	MarkMigrationApplied: "INSERT INTO goose_db_version (version_id, is_applied) " +
		"SELECT ?, 1 FROM DUAL WHERE NOT EXISTS (SELECT 1 FROM goose_db_version WHERE version_id = ?)",
	IsDuplicateTableError: func(err error) bool {
		if err == nil {
			return false
		}
		msg := err.Error()
		return strings.Contains(msg, "Error 1050") || strings.Contains(msg, "already exists")
	},
	dialector: func(cfg *sharedConfig.DatabaseConfig) gorm.Dialector {
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		return mysql.New(mysql.Config{
			DSN:                       dsn,
			SkipInitializeWithVersion: true,
		})
	},
}

var postgresEngine = &Engine{
	Name:         "postgres",
	GooseDialect: "postgres",
	MarkMigrationApplied: "INSERT INTO goose_db_version (version_id, is_applied) " +
		"SELECT ?, TRUE WHERE NOT EXISTS (SELECT 1 FROM goose_db_version WHERE version_id = ?)",
	IsDuplicateTableError: func(err error) bool {
		if err == nil {
			return false
		}
		msg := err.Error()
		return strings.Contains(msg, "SQLSTATE 42P07") || strings.Contains(msg, "already exists")
	},
	dialector: func(cfg *sharedConfig.DatabaseConfig) gorm.Dialector {
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port)
		return postgres.Open(dsn)
	},
}

var sqliteEngine = &Engine{
	Name:         "sqlite",
	GooseDialect: "sqlite3",
	MarkMigrationApplied: "INSERT INTO goose_db_version (version_id, is_applied) " +
		"SELECT ?, 1 WHERE NOT EXISTS (SELECT 1 FROM goose_db_version WHERE version_id = ?)",
	IsDuplicateTableError: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "already exists")
	},
	dialector: func(cfg *sharedConfig.DatabaseConfig) gorm.Dialector {
		return sqlite.Open(cfg.Path)
	},
}

// ForDriver selects the engine named by configuration. Exactly one engine is
// instantiated per process; there is no runtime switching.
func ForDriver(driver string) (*Engine, error) {
	switch strings.ToLower(driver) {
	case "mysql":
		return mysqlEngine, nil
	case "postgres", "postgresql":
		return postgresEngine, nil
	case "sqlite", "sqlite3":
		return sqliteEngine, nil
	default:
		return nil, apperrors.NewUnsupportedConfigError("unsupported database driver", driver)
	}
}
