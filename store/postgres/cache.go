package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlabs/weft/cache"
	"github.com/weftlabs/weft/codec"
)

// Lookup retrieves a cached step result. Expired entries are treated as
// absent and reclaimed lazily.
func (s *Store) Lookup(ctx context.Context, key string) (*cache.Entry, bool, error) {
	var (
		entry     cache.Entry
		output    []byte
		ttlNanos  int64
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT workflow, step, output, stored_at, ttl_ns, expires_at
		FROM weft_cache
		WHERE key = $1`,
		key,
	).Scan(&entry.Workflow, &entry.Step, &output, &entry.StoredAt, &ttlNanos, &expiresAt)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("weft/postgres: cache lookup: %w", err)
	}

	if expiresAt != nil && time.Now().After(*expiresAt) {
		if delErr := s.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to reclaim expired cache entry", "key", key, "error", delErr)
		}
		return nil, false, nil
	}

	entry.Key = key
	entry.TTL = time.Duration(ttlNanos)
	if err := (codec.JSON{}).Unmarshal(output, &entry.Output); err != nil {
		return nil, false, fmt.Errorf("weft/postgres: decode cache output: %w", err)
	}
	return &entry, true, nil
}

// Put stores a cache entry, replacing any previous entry for the key.
func (s *Store) Put(ctx context.Context, entry *cache.Entry) error {
	output, err := codec.JSON{}.Marshal(entry.Output)
	if err != nil {
		return fmt.Errorf("weft/postgres: encode cache output: %w", err)
	}

	var expiresAt *time.Time
	if entry.TTL > 0 {
		t := entry.StoredAt.Add(entry.TTL)
		expiresAt = &t
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO weft_cache (key, workflow, step, output, stored_at, ttl_ns, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET
			workflow = EXCLUDED.workflow,
			step = EXCLUDED.step,
			output = EXCLUDED.output,
			stored_at = EXCLUDED.stored_at,
			ttl_ns = EXCLUDED.ttl_ns,
			expires_at = EXCLUDED.expires_at`,
		entry.Key, entry.Workflow, entry.Step, output,
		entry.StoredAt, int64(entry.TTL), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("weft/postgres: cache put: %w", err)
	}
	return nil
}

// Delete removes a cache entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM weft_cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("weft/postgres: cache delete: %w", err)
	}
	return nil
}

// Sweep removes expired entries and returns how many were reclaimed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM weft_cache WHERE expires_at IS NOT NULL AND expires_at < NOW()`,
	)
	if err != nil {
		return 0, fmt.Errorf("weft/postgres: cache sweep: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
