package repository

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"smmpanel/internal/database"
	"smmpanel/pkg/logger"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrationService(db, database.SQLite, logger.NewNop()).RunMigrations())
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
