// Package dbtest opens the canonical store for integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/internal/migrations"
	"github.com/radieske/inhouse-points/internal/shared/db"
)

const EnvDSN = "TEST_POSTGRES_DSN"

// Open connects to TEST_POSTGRES_DSN, migrates, and empties every table. Tests are
// skipped when the variable is unset or -short is given.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skip(EnvDSN + " not set")
	}

	conn, err := db.ConnectPostgres(dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := migrations.Run(conn.DB, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), `
		TRUNCATE bets, processed_events, point_balances, points, match_player_stats, matches, users
		RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return conn
}
