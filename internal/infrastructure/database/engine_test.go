package database

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ticketd/internal/shared/errors"
)

func TestForDriver(t *testing.T) {
	cases := []struct {
		driver string
		want   string
	}{
		{"mysql", "mysql"},
		{"MySQL", "mysql"},
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
	}

	for _, tc := range cases {
		engine, err := ForDriver(tc.driver)
		require.NoError(t, err, "driver %q", tc.driver)
		assert.Equal(t, tc.want, engine.Name)
	}
}

func TestForDriver_Unsupported(t *testing.T) {
	_, err := ForDriver("oracle")
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeUnsupportedConfig, appErr.Type)
}

func TestEngine_IsDuplicateTableError(t *testing.T) {
	mysqlEng, _ := ForDriver("mysql")
	pgEng, _ := ForDriver("postgres")
	sqliteEng, _ := ForDriver("sqlite")

	t.Run("mysql recognizes error 1050", func(t *testing.T) {
		assert.True(t, mysqlEng.IsDuplicateTableError(fmt.Errorf("Error 1050 (42S01): Table 'tickets' already exists")))
		assert.False(t, mysqlEng.IsDuplicateTableError(fmt.Errorf("Error 1045: Access denied")))
	})

	t.Run("postgres recognizes 42P07", func(t *testing.T) {
		assert.True(t, pgEng.IsDuplicateTableError(fmt.Errorf(`ERROR: relation "tickets" already exists (SQLSTATE 42P07)`)))
		assert.False(t, pgEng.IsDuplicateTableError(fmt.Errorf("connection refused")))
	})

	t.Run("sqlite matches message text", func(t *testing.T) {
		assert.True(t, sqliteEng.IsDuplicateTableError(fmt.Errorf("table tickets already exists")))
		assert.False(t, sqliteEng.IsDuplicateTableError(fmt.Errorf("no such table: tickets")))
	})

	t.Run("nil error is never a duplicate", func(t *testing.T) {
		assert.False(t, mysqlEng.IsDuplicateTableError(nil))
		assert.False(t, pgEng.IsDuplicateTableError(nil))
		assert.False(t, sqliteEng.IsDuplicateTableError(nil))
	})
}

func TestEngine_MarkMigrationApplied(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		engine, err := ForDriver(driver)
		require.NoError(t, err)
		assert.Contains(t, engine.MarkMigrationApplied, "WHERE NOT EXISTS",
			"%s insert must be guarded against concurrent duplicates", driver)
	}
}
