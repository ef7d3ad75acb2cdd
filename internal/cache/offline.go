package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"formlink-backend/internal/store"
)

// ErrMiss is returned when no cached value exists for a key.
var ErrMiss = errors.New("cache miss")

// KV is the persisted cache contract consumed by the sync fetcher, the
// lookup client, and the suggestion loader. Values are JSON-serialized.
type KV interface {
	Set(ctx context.Context, key string, v any) error
	Get(ctx context.Context, key string, out any) error
}

// Offline persists cache entries in the _offline_cache table so registry
// and lookup data survive upstream outages and process restarts. Entries
// are never evicted.
type Offline struct {
	store *store.Store
}

func NewOffline(s *store.Store) *Offline {
	return &Offline{store: s}
}

// Set JSON-serializes v and upserts it under key.
func (o *Offline) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	pb := o.store.Dialect.NewParamBuilder()
	now := o.store.Dialect.NowExpr()
	_, err = store.Exec(ctx, o.store.DB,
		fmt.Sprintf(`INSERT INTO _offline_cache (key, value, updated_at) VALUES (%s, %s, %s)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = %s`,
			pb.Add(key), pb.Add(string(data)), now, now),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

// Get unmarshals the entry stored under key into out. Returns ErrMiss when
// no entry exists.
func (o *Offline) Get(ctx context.Context, key string, out any) error {
	pb := o.store.Dialect.NewParamBuilder()
	var data []byte
	err := o.store.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT value FROM _offline_cache WHERE key = %s", pb.Add(key)),
		pb.Params()...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("read cache entry %s: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal cache entry %s: %w", key, err)
	}
	return nil
}
