package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/people-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileBackend(t *testing.T) (*FileBackend, string) {
	dir := filepath.Join(t.TempDir(), "state")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := NewFileBackend(dir, logger)
	require.NoError(t, err)
	return backend, dir
}

func TestFileBackend_SaveLoad(t *testing.T) {
	backend, dir := newTestFileBackend(t)
	ctx := context.Background()

	_, err := backend.Load(ctx, interfaces.RegistryStateKey)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Save(ctx, interfaces.RegistryStateKey, []byte("first")))
	require.NoError(t, backend.Save(ctx, interfaces.RegistryStateKey, []byte("second")))

	data, err := backend.Load(ctx, interfaces.RegistryStateKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	// No temporary files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, interfaces.RegistryStateKey+".json", entries[0].Name())
}

func TestFileBackend_KeysAreIndependent(t *testing.T) {
	backend, _ := newTestFileBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, interfaces.RegistryStateKey, []byte("state")))
	require.NoError(t, backend.Save(ctx, interfaces.PaymentClaimsKey, []byte("claims")))

	data, err := backend.Load(ctx, interfaces.PaymentClaimsKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("claims"), data)
}

func TestFileBackend_InvalidKey(t *testing.T) {
	backend, _ := newTestFileBackend(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.Error(t, backend.Save(ctx, key, []byte("x")), key)
		_, err := backend.Load(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestFileBackend_Available(t *testing.T) {
	backend, dir := newTestFileBackend(t)
	assert.True(t, backend.Available(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.False(t, backend.Available(context.Background()))
}
