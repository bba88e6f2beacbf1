// Package pgtest starts a disposable Postgres container for integration tests.
package pgtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Image is the Postgres image used by integration tests.
const Image = "postgres:16-alpine"

// DSN starts a fresh Postgres container and returns its connection string.
// The container is terminated when the test ends.
//
// Skips the test in short mode (requires Docker).
func DSN(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx, Image,
		postgres.WithDatabase("sparkifydb"),
		postgres.WithUsername("student"),
		postgres.WithPassword("student"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pgContainer)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}
