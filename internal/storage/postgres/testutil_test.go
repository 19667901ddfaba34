package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container and applies the embedded
// migrations. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	runMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runMigrations applies the schema. The migrations package imports
// this one, so the embedded files cannot be used here without an
// import cycle; the statements below mirror them.
func runMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	for _, stmt := range testSchema {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to apply schema")
	}
}

var testSchema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		pool_id               TEXT PRIMARY KEY,
		base_mint             TEXT NOT NULL,
		quote_mint            TEXT NOT NULL,
		base_vault            TEXT NOT NULL DEFAULT '',
		quote_vault           TEXT NOT NULL DEFAULT '',
		lp_mint               TEXT NOT NULL DEFAULT '',
		pool_open_time        BIGINT NOT NULL DEFAULT 0,
		detected_at           BIGINT NOT NULL,
		stage                 TEXT NOT NULL,
		missed_tee_up         BOOLEAN NOT NULL DEFAULT FALSE,
		time_to_status_six_ms BIGINT,
		created_at            BIGINT NOT NULL DEFAULT (extract(epoch FROM now()) * 1000)::BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS pool_snapshots (
		id            BIGSERIAL PRIMARY KEY,
		pool_id       TEXT NOT NULL,
		timestamp_ms  BIGINT NOT NULL,
		base_mint     TEXT NOT NULL,
		quote_mint    TEXT NOT NULL,
		base_symbol   TEXT NOT NULL DEFAULT '',
		quote_symbol  TEXT NOT NULL DEFAULT '',
		base_reserve  DOUBLE PRECISION NOT NULL,
		quote_reserve DOUBLE PRECISION NOT NULL,
		price         DOUBLE PRECISION NOT NULL,
		tvl           DOUBLE PRECISION NOT NULL,
		buy_pressure  DOUBLE PRECISION NOT NULL DEFAULT 0,
		sell_pressure DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at    BIGINT NOT NULL DEFAULT (extract(epoch FROM now()) * 1000)::BIGINT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_pool_snapshots_pool_ts
		ON pool_snapshots (pool_id, timestamp_ms)`,
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
