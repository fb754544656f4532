//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/people-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// exerciseStateStore runs the behaviour every backend must share.
func exerciseStateStore(t *testing.T, store interfaces.StateStore) {
	ctx := context.Background()

	assert.True(t, store.Available(ctx))

	_, err := store.Load(ctx, interfaces.RegistryStateKey)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, store.Save(ctx, interfaces.RegistryStateKey, []byte(`{"version":1}`)))
	require.NoError(t, store.Save(ctx, interfaces.RegistryStateKey, []byte(`{"version":1,"people":[]}`)))

	data, err := store.Load(ctx, interfaces.RegistryStateKey)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"version":1,"people":[]}`), data)

	_, err = store.Load(ctx, interfaces.PaymentClaimsKey)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestRedisBackend_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)
	store, err := factory.StorageBackendFor(mustLocation(t, uri+"?prefix=it"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.(*RedisBackend).Close() })

	exerciseStateStore(t, store)
}

func TestPostgresBackend_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("registry"),
		tcpostgres.WithUsername("registry"),
		tcpostgres.WithPassword("registry"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)
	store, err := factory.StorageBackendFor(mustLocation(t, uri))
	require.NoError(t, err)
	t.Cleanup(func() { store.(*PostgresBackend).Close() })

	exerciseStateStore(t, store)

	// The table survives a second backend on the same database
	again, err := NewPostgresBackend(ctx, uri, logger)
	require.NoError(t, err)
	defer again.Close()

	data, err := again.Load(ctx, interfaces.RegistryStateKey)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"version":1,"people":[]}`), data)
}
