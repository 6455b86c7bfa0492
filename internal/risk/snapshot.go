package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/openidx/hijackguard/internal/common/database"
)

// ErrNoSnapshot is returned by a SnapshotStore that holds no state yet
var ErrNoSnapshot = errors.New("no model snapshot")

// SnapshotStore persists the global model between restarts
type SnapshotStore interface {
	Save(ctx context.Context, state ModelState) error
	Load(ctx context.Context) (ModelState, error)
}

const defaultSnapshotKey = "hijackguard:model:global"

// RedisSnapshotStore keeps the latest model state as a JSON string
type RedisSnapshotStore struct {
	redis *database.RedisClient
	key   string
}

// NewRedisSnapshotStore creates a store under the default key
func NewRedisSnapshotStore(redis *database.RedisClient) *RedisSnapshotStore {
	return &RedisSnapshotStore{redis: redis, key: defaultSnapshotKey}
}

// Save overwrites the stored snapshot. Snapshots never expire.
func (s *RedisSnapshotStore) Save(ctx context.Context, state ModelState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode model snapshot: %w", err)
	}
	if err := s.redis.Client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store model snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot or ErrNoSnapshot
func (s *RedisSnapshotStore) Load(ctx context.Context) (ModelState, error) {
	var state ModelState

	data, err := s.redis.Client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return state, ErrNoSnapshot
	}
	if err != nil {
		return state, fmt.Errorf("failed to read model snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("failed to decode model snapshot: %w", err)
	}
	return state, nil
}
