package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
)

// DefaultRedisKey is the key used when none is configured.
const DefaultRedisKey = "hrdesk:snapshot"

// RedisBackend stores the snapshot as one JSON value under a single key,
// alongside a small hash of metadata for inspection with redis-cli.
type RedisBackend struct {
	client *redis.Client
	key    string
	owned  bool
}

// NewRedisBackend uses an existing client. The caller keeps ownership of it.
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{client: client, key: key}
}

// DialRedis opens a client with opts and pings it.
func DialRedis(ctx context.Context, opts *redis.Options, key string) (*RedisBackend, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, deskerrors.ErrPersistenceFailure("connect", err)
	}
	b := NewRedisBackend(client, key)
	b.owned = true
	return b, nil
}

// Load fetches and decodes the snapshot. A missing key is an empty snapshot.
func (r *RedisBackend) Load(ctx context.Context) (*Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, deskerrors.ErrPersistenceFailure("load", err)
	}
	return decodeSnapshot(data, FormatJSON)
}

// Save writes the snapshot and its metadata in one transaction.
func (r *RedisBackend) Save(ctx context.Context, s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return deskerrors.ErrPersistenceFailure("save", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, data, 0)
		pipe.HSet(ctx, r.metaKey(),
			"version", s.Version,
			"saved_at", s.SavedAt.UTC().Format(time.RFC3339),
			"tasks", len(s.Tasks),
			"schedules", len(s.Schedules),
		)
		return nil
	})
	if err != nil {
		return deskerrors.ErrPersistenceFailure("save", err)
	}
	return nil
}

// Close closes the client if this backend created it.
func (r *RedisBackend) Close() error {
	if r.owned {
		return r.client.Close()
	}
	return nil
}

func (r *RedisBackend) metaKey() string {
	return r.key + ":meta"
}
