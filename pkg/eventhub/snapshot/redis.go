package snapshot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces snapshot keys.
const DefaultRedisPrefix = "eventhub:snapshot:"

// RedisStore persists snapshots in Redis. Each hub owns two hashes keyed by
// extension name: one holding payloads and one holding save times.
type RedisStore struct {
	client *redis.Client
	prefix string
	closed atomic.Bool
}

// NewRedisStore creates a store using the given client options.
// An empty prefix selects DefaultRedisPrefix.
func NewRedisStore(opts *redis.Options, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: redis.NewClient(opts), prefix: prefix}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) dataKey(hubID string) string { return s.prefix + hubID }
func (s *RedisStore) timeKey(hubID string) string { return s.prefix + hubID + ":saved_at" }

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, hubID, extension string, data []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.dataKey(hubID), extension, data)
		pipe.HSet(ctx, s.timeKey(hubID), extension, time.Now().UTC().UnixNano())
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, hubID, extension string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	data, err := s.client.HGet(ctx, s.dataKey(hubID), extension).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, hubID string) ([]Info, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	var dataCmd, timeCmd *redis.MapStringStringCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		dataCmd = pipe.HGetAll(ctx, s.dataKey(hubID))
		timeCmd = pipe.HGetAll(ctx, s.timeKey(hubID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	times := timeCmd.Val()
	infos := make([]Info, 0, len(dataCmd.Val()))
	for ext, data := range dataCmd.Val() {
		info := Info{HubID: hubID, Extension: ext, Size: int64(len(data))}
		if ns, err := strconv.ParseInt(times[ext], 10, 64); err == nil {
			info.SavedAt = time.Unix(0, ns).UTC()
		}
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b Info) int { return strings.Compare(a.Extension, b.Extension) })
	return infos, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, hubID, extension string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.dataKey(hubID), extension)
		pipe.HDel(ctx, s.timeKey(hubID), extension)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// DeleteHub implements Store.
func (s *RedisStore) DeleteHub(ctx context.Context, hubID string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := s.client.Del(ctx, s.dataKey(hubID), s.timeKey(hubID)).Err(); err != nil {
		return fmt.Errorf("delete hub snapshots: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.client.Close()
}
