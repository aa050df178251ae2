// Package testutil opens a migrated Postgres pool for adapter integration tests.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Flora-Ebah/kairos-backend/internal/adapters/postgres"
)

// DSNEnv names the variable holding the test database DSN. Tests skip when it is unset.
const DSNEnv = "POSTGRES_TEST_DSN"

// OpenMigratedPool connects to the test database, applies migrations and empties the given tables.
func OpenMigratedPool(t *testing.T, truncate ...string) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping postgres integration test", DSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 8})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(truncate) > 0 {
		if _, err := pool.Exec(ctx, "TRUNCATE "+strings.Join(truncate, ", ")+" CASCADE"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
	}
	return pool
}
