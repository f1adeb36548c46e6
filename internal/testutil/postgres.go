// Package testutil provides shared test infrastructure, currently the
// containerized PostgreSQL instance backing store integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/remindhq/remind/db"
	"github.com/remindhq/remind/internal/database"
	"github.com/remindhq/remind/internal/log"
)

// TestDB is a disposable PostgreSQL instance with the pgvector extension
// installed and the full schema migrated.
type TestDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

// SetupTestDB starts a PostgreSQL container, applies the embedded
// migrations, and opens a connection pool with the vector type
// registered. The returned cleanup terminates the container; call it
// from a defer or t.Cleanup.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("remind_test"),
		postgres.WithUsername("remind_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		t.Fatalf("reading container connection string: %v", err)
	}

	if err := db.Migrate(connStr, log.NewNop()); err != nil {
		terminate()
		t.Fatalf("migrating test database: %v", err)
	}

	pool, err := database.Open(ctx, connStr)
	if err != nil {
		terminate()
		t.Fatalf("opening test pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		terminate()
	}
	return &TestDB{Pool: pool, ConnStr: connStr}, cleanup
}
