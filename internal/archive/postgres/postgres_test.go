package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
)

func TestPostgresArchive_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	a, err := New(connStr)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	recs := []record.Record{
		record.New("MAIN", "MainService", record.Info, "boot", "main.go:10", base),
		record.New("NET", "Network", record.Critical, "link down", "net.go:7", base.Add(time.Minute)),
	}
	require.NoError(t, a.Archive(ctx, recs))
	require.NoError(t, a.Archive(ctx, recs))

	got, err := a.Retrieve(ctx, record.Query{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recs[0].ID, got[0].ID)
	assert.True(t, base.Equal(got[0].Time))

	crit, err := a.Retrieve(ctx, record.Query{Level: record.LevelPtr(record.Critical)})
	require.NoError(t, err)
	require.Len(t, crit, 1)
	assert.Equal(t, "Network", crit[0].ServiceName)

	n, err := a.Erase(ctx, record.Query{Until: base})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
