package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ErikKalkoken/evesync/internal/app"
)

func (st *Storage) CacheClear(ctx context.Context) error {
	_, err := st.dbRW.ExecContext(ctx, `DELETE FROM cache;`)
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// CacheCleanup removes all expired entries and returns how many were removed.
func (st *Storage) CacheCleanup(ctx context.Context) (int, error) {
	r, err := st.dbRW.ExecContext(ctx, `DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at < ?;`, now())
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	return int(n), nil
}

func (st *Storage) CacheExists(ctx context.Context, key string) (bool, error) {
	_, err := st.CacheGet(ctx, key)
	if errors.Is(err, app.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	return true, nil
}

// CacheGet returns the value of a key. Expired keys are reported as not found.
func (st *Storage) CacheGet(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := st.dbRO.GetContext(ctx, &v, `
		SELECT value
		FROM cache
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?);`,
		key, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", convertGetError(err))
	}
	return v, nil
}

func (st *Storage) CacheDelete(ctx context.Context, key string) error {
	_, err := st.dbRW.ExecContext(ctx, `DELETE FROM cache WHERE key = ?;`, key)
	if err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

type CacheSetParams struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time // zero value means the key never expires
}

func (st *Storage) CacheSet(ctx context.Context, arg CacheSetParams) error {
	var expiresAt sql.NullTime
	if !arg.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: arg.ExpiresAt.UTC(), Valid: true}
	}
	_, err := st.dbRW.ExecContext(ctx, `
		INSERT INTO cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at;`,
		arg.Key, arg.Value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", arg.Key, err)
	}
	return nil
}
