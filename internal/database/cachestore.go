package database

import (
	"context"
	"fmt"
	"time"
)

// CacheEntry is one persisted resolution. Value is opaque to this package.
type CacheEntry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// LoadCache returns entries expiring after notBefore, soonest first.
func (db *DB) LoadCache(ctx context.Context, notBefore time.Time) ([]CacheEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT cache_key, value, expires_at FROM resolution_cache WHERE expires_at > ? ORDER BY expires_at`,
		notBefore.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var (
			e         CacheEntry
			expiresAt int64
		)
		if err := rows.Scan(&e.Key, &e.Value, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		e.ExpiresAt = time.UnixMilli(expiresAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveCacheEntry inserts or replaces an entry.
func (db *DB) SaveCacheEntry(ctx context.Context, e CacheEntry) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO resolution_cache (cache_key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		e.Key, e.Value, e.ExpiresAt.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save cache entry %q: %w", e.Key, err)
	}
	return nil
}

// DeleteCacheEntry removes one entry. Missing keys are not an error.
func (db *DB) DeleteCacheEntry(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM resolution_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry %q: %w", key, err)
	}
	return nil
}

// DeleteCacheEntriesBefore removes entries that expired at or before t.
func (db *DB) DeleteCacheEntriesBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM resolution_cache WHERE expires_at <= ?`, t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return res.RowsAffected()
}

// ClearCache removes every entry.
func (db *DB) ClearCache(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM resolution_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return res.RowsAffected()
}
