package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/coordflow/state"
)

// RedisSnapshotStore is a Redis-based implementation of SnapshotStore.
// Suitable for distributed production deployments. One string key per run.
type RedisSnapshotStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSnapshotStore connects to Redis and verifies the connection.
func NewRedisSnapshotStore(cfg Config) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "coordflow:"
	}
	return &RedisSnapshotStore{
		client:    client,
		keyPrefix: keyPrefix + "snapshot:",
	}, nil
}

// newRedisSnapshotStoreFromClient wires an existing client; used by tests.
func newRedisSnapshotStoreFromClient(client *redis.Client, keyPrefix string) *RedisSnapshotStore {
	if keyPrefix == "" {
		keyPrefix = "coordflow:"
	}
	return &RedisSnapshotStore{client: client, keyPrefix: keyPrefix + "snapshot:"}
}

func (s *RedisSnapshotStore) key(runID string) string {
	return s.keyPrefix + runID
}

// SaveSnapshot persists a run's state.
func (s *RedisSnapshotStore) SaveSnapshot(ctx context.Context, runID string, st *state.State) error {
	if runID == "" || st == nil {
		return ErrInvalidInput
	}
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(runID), data, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored state for a run.
func (s *RedisSnapshotStore) LoadSnapshot(ctx context.Context, runID string) (*state.State, error) {
	data, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return state.Unmarshal(data)
}

// DeleteSnapshot removes a run's snapshot.
func (s *RedisSnapshotStore) DeleteSnapshot(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, s.key(runID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListRuns scans the keyspace for snapshot keys.
func (s *RedisSnapshotStore) ListRuns(ctx context.Context) ([]string, error) {
	var (
		runs   []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, k := range keys {
			runs = append(runs, strings.TrimPrefix(k, s.keyPrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// Close closes the store.
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy.
func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
