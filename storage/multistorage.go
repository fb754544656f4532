package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/people-registry/interfaces"
)

// MultiStorageBackend replicates state across several backends.
//
// The first backend is the primary: a save fails unless the primary accepts it,
// so the primary always holds the latest acknowledged state. The remaining backends
// are replicas written on a best-effort basis. Loads read from the first available
// backend that has the key.
type MultiStorageBackend struct {
	backends []interfaces.StateStore
	log      *slog.Logger
}

// NewMultiStorageBackend creates a multi-backend with backends[0] as the primary.
func NewMultiStorageBackend(backends []interfaces.StateStore, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Load returns the value of key from the first backend that has it.
func (m *MultiStorageBackend) Load(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key))
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		data, err := backend.Load(ctx, key)
		if err == nil {
			m.log.Debug("Loaded state",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Warn("Failed to load from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("key", key),
			"err", err)
	}

	if len(errs) == 0 && notFound > 0 {
		return nil, interfaces.ErrContentNotFound
	}

	m.log.Error("No backend could load state",
		slog.String("key", key),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("%w: all backends failed to load %s: %v", interfaces.ErrBackendUnavailable, key, errors.Join(errs...))
}

// Save writes to the primary, then to every replica.
// Replica failures are logged and do not fail the save.
func (m *MultiStorageBackend) Save(ctx context.Context, key string, data []byte) error {
	if len(m.backends) == 0 {
		return fmt.Errorf("%w: no storage backends configured", interfaces.ErrBackendUnavailable)
	}
	start := time.Now()

	primary := m.backends[0]
	if err := primary.Save(ctx, key, data); err != nil {
		m.log.Error("Failed to save to primary backend",
			slog.String("backend_name", primary.Name()),
			slog.String("key", key),
			"err", err)
		return fmt.Errorf("primary %s: %w", primary.Name(), err)
	}

	for _, replica := range m.backends[1:] {
		if err := replica.Save(ctx, key, data); err != nil {
			m.log.Warn("Failed to save to replica backend",
				slog.String("backend_name", replica.Name()),
				slog.String("key", key),
				"err", err)
		}
	}

	m.log.Debug("Saved state",
		slog.String("key", key),
		slog.Int("backends", len(m.backends)),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available reports whether the primary backend is available.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	if len(m.backends) == 0 {
		return false
	}
	return m.backends[0].Available(ctx)
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI combines the location URIs of all backends.
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}

// Backends returns the configured backends, primary first.
func (m *MultiStorageBackend) Backends() []interfaces.StateStore {
	return m.backends
}
