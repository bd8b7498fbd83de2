package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisBackend stores entries in Redis so the cache survives restarts.
//
// Each entry is a hash under {prefix}{generation}:e:{key}. A sorted set per
// generation scores keys by a monotonic access sequence and drives LRU
// eviction. Clear bumps the generation so readers stop seeing old entries at
// once; the old keys are then deleted.
type RedisBackend struct {
	client     *backend.Client
	prefix     string
	maxEntries int
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisBackend) {
		r.prefix = prefix
	}
}

// WithMaxEntries sets the LRU bound.
func WithMaxEntries(n int) RedisOption {
	return func(r *RedisBackend) {
		if n > 0 {
			r.maxEntries = n
		}
	}
}

// NewRedisBackend connects a backend to the given Redis server.
func NewRedisBackend(address, password string, db int, opts ...RedisOption) *RedisBackend {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisBackendFromClient(rdb, opts...)
}

// NewRedisBackendFromClient creates a backend on an existing client.
func NewRedisBackendFromClient(client *backend.Client, opts ...RedisOption) *RedisBackend {
	r := &RedisBackend{
		client:     client,
		prefix:     "hearth:cache:",
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping checks the connection.
func (r *RedisBackend) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) genKey() string { return r.prefix + "gen" }
func (r *RedisBackend) seqKey() string { return r.prefix + "seq" }

func (r *RedisBackend) entryKey(gen int64, key string) string {
	return r.prefix + strconv.FormatInt(gen, 10) + ":e:" + key
}

func (r *RedisBackend) indexKey(gen int64) string {
	return r.prefix + strconv.FormatInt(gen, 10) + ":lru"
}

func (r *RedisBackend) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, r.genKey()).Int64()
	if errors.Is(err, backend.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: reading generation: %w", err)
	}
	return gen, nil
}

// touch returns the next access sequence number.
func (r *RedisBackend) touch(ctx context.Context) (float64, error) {
	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: advancing sequence: %w", err)
	}
	return float64(seq), nil
}

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, key string) (Entry, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return Entry{}, err
	}
	ek := r.entryKey(gen, key)

	fields, err := r.client.HGetAll(ctx, ek).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("cache: reading entry: %w", err)
	}
	if len(fields) == 0 {
		// Expired by Redis; drop it from the index too.
		r.client.ZRem(ctx, r.indexKey(gen), key) //nolint:errcheck // index self-heals on eviction
		return Entry{}, ErrMiss
	}

	var e Entry
	if err := json.Unmarshal([]byte(fields["intent"]), &e.Intent); err != nil {
		return Entry{}, fmt.Errorf("cache: decoding entry: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["stored_at"]); err == nil {
		e.StoredAt = ts
	}

	score, err := r.touch(ctx)
	if err != nil {
		return Entry{}, err
	}
	hits, err := recordHit.Run(ctx, r.client, []string{ek, r.indexKey(gen)}, score, key).Int64()
	if err != nil {
		return Entry{}, fmt.Errorf("cache: recording hit: %w", err)
	}
	if hits < 0 {
		return Entry{}, ErrMiss
	}
	e.Hits = hits
	return e, nil
}

// recordHit bumps the hit count and LRU score of an entry that still
// exists. An entry that expired after it was read is dropped from the index
// and reported as -1, so a bare hits field is never written without a TTL.
var recordHit = backend.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('ZREM', KEYS[2], ARGV[2])
	return -1
end
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
return redis.call('HINCRBY', KEYS[1], 'hits', 1)
`)

// Set implements Backend.
func (r *RedisBackend) Set(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	data, err := json.Marshal(e.Intent)
	if err != nil {
		return fmt.Errorf("cache: encoding entry: %w", err)
	}
	gen, err := r.generation(ctx)
	if err != nil {
		return err
	}
	score, err := r.touch(ctx)
	if err != nil {
		return err
	}

	ek := r.entryKey(gen, key)
	idx := r.indexKey(gen)

	pipe := r.client.Pipeline()
	pipe.Del(ctx, ek)
	pipe.HSet(ctx, ek,
		"intent", data,
		"stored_at", e.StoredAt.UTC().Format(time.RFC3339Nano),
		"hits", e.Hits,
	)
	if ttl > 0 {
		pipe.Expire(ctx, ek, ttl)
	}
	pipe.ZAdd(ctx, idx, backend.Z{Score: score, Member: key})
	size := pipe.ZCard(ctx, idx)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: writing entry: %w", err)
	}

	if over := size.Val() - int64(r.maxEntries); over > 0 {
		return r.evict(ctx, gen, over)
	}
	return nil
}

// evict removes the n least recently used entries of gen.
func (r *RedisBackend) evict(ctx context.Context, gen int64, n int64) error {
	victims, err := r.client.ZPopMin(ctx, r.indexKey(gen), n).Result()
	if err != nil {
		return fmt.Errorf("cache: evicting: %w", err)
	}
	if len(victims) == 0 {
		return nil
	}
	keys := make([]string, 0, len(victims))
	for _, v := range victims {
		if member, ok := v.Member.(string); ok {
			keys = append(keys, r.entryKey(gen, member))
		}
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: evicting: %w", err)
	}
	return nil
}

// Clear implements Backend.
func (r *RedisBackend) Clear(ctx context.Context) error {
	old, err := r.generation(ctx)
	if err != nil {
		return err
	}
	if err := r.client.Incr(ctx, r.genKey()).Err(); err != nil {
		return fmt.Errorf("cache: bumping generation: %w", err)
	}

	members, err := r.client.ZRange(ctx, r.indexKey(old), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("cache: listing old generation: %w", err)
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, r.entryKey(old, m))
	}
	keys = append(keys, r.indexKey(old))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: deleting old generation: %w", err)
	}
	return nil
}

// Len implements Backend. Index members whose entry has expired are pruned.
func (r *RedisBackend) Len(ctx context.Context) (int, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return 0, err
	}
	idx := r.indexKey(gen)

	members, err := r.client.ZRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: listing entries: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	exists := make([]*backend.IntCmd, len(members))
	for i, m := range members {
		exists[i] = pipe.Exists(ctx, r.entryKey(gen, m))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache: checking entries: %w", err)
	}

	var stale []any
	for i, cmd := range exists {
		if cmd.Val() == 0 {
			stale = append(stale, members[i])
		}
	}
	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, idx, stale...).Err(); err != nil {
			return 0, fmt.Errorf("cache: pruning index: %w", err)
		}
	}
	return len(members) - len(stale), nil
}
