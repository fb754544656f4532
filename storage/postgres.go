package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruteri/people-registry/interfaces"
)

const createStateTable = `CREATE TABLE IF NOT EXISTS registry_state (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresBackend implements a state store as rows of the registry_state table.
type PostgresBackend struct {
	pool        *pgxpool.Pool
	host        string
	database    string
	log         *slog.Logger
	locationURI string
}

// NewPostgresBackend connects to connString and creates the state table if needed.
func NewPostgresBackend(ctx context.Context, connString string, log *slog.Logger) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	if _, err := pool.Exec(ctx, createStateTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: create state table: %v", interfaces.ErrBackendUnavailable, err)
	}

	cfg := pool.Config().ConnConfig
	return &PostgresBackend{
		pool:        pool,
		host:        cfg.Host,
		database:    cfg.Database,
		log:         log,
		locationURI: fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, cfg.Port, cfg.Database),
	}, nil
}

// Load selects the row holding key.
func (b *PostgresBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	start := time.Now()

	var data []byte
	err := b.pool.QueryRow(ctx, `SELECT data FROM registry_state WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrContentNotFound
	} else if err != nil {
		b.log.Error("Failed to read state from Postgres",
			slog.String("key", key),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Loaded state from Postgres",
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Save upserts the row holding key.
func (b *PostgresBackend) Save(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	_, err := b.pool.Exec(ctx, `
		INSERT INTO registry_state (key, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		key, data)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Saved state to Postgres",
		slog.String("key", key),
		slog.Int("size", len(data)))

	return nil
}

// Available pings the database.
func (b *PostgresBackend) Available(ctx context.Context) bool {
	if err := b.pool.Ping(ctx); err != nil {
		b.log.Debug("Postgres backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *PostgresBackend) Name() string {
	return fmt.Sprintf("postgres-%s-%s", b.host, b.database)
}

// LocationURI returns the URI that identifies this storage backend.
// Credentials are omitted.
func (b *PostgresBackend) LocationURI() string {
	return b.locationURI
}

// Close releases the connection pool.
func (b *PostgresBackend) Close() {
	b.pool.Close()
}
