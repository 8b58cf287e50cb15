package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/proxyrelay/core/logger"
)

// sqlRunner is the subset of *sqlx.DB used by Postgres.
type sqlRunner interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	selectDocSQL = `SELECT value FROM relay_kv WHERE key = $1`
	upsertDocSQL = `INSERT INTO relay_kv (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

// Postgres stores documents as JSONB rows of the relay_kv table.
type Postgres struct {
	db sqlRunner
}

// NewPostgres wraps an open *sqlx.DB whose schema has been migrated.
func NewPostgres(db sqlRunner) *Postgres {
	return &Postgres{db: db}
}

// Load implements Store.
func (p *Postgres) Load(ctx context.Context, key string, v any) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	var raw []byte
	err := p.db.GetContext(ctx, &raw, selectDocSQL, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: select %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

// Save implements Store with a single upsert, so readers never see a partial document.
func (p *Postgres) Save(ctx context.Context, key string, v any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if _, err := p.db.ExecContext(ctx, upsertDocSQL, key, string(data)); err != nil {
		logger.Error(ctx, "store", "store.save",
			slog.String("status", "fail"),
			slog.String("driver", DriverPostgres),
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("store: upsert %s: %w", key, err)
	}
	return nil
}

// Close implements Store. The pool belongs to bootstrap and is closed there.
func (p *Postgres) Close() error { return nil }
