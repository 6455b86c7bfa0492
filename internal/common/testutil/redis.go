// Package testutil provides shared fixtures for hijackguard tests
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/openidx/hijackguard/internal/common/database"
)

// MockRedis pairs an in-process miniredis server with a client bound to it
type MockRedis struct {
	Mini   *miniredis.Miniredis
	Client *database.RedisClient
}

// NewMockRedis starts miniredis for the lifetime of t
func NewMockRedis(t testing.TB) *MockRedis {
	t.Helper()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { client.Close() })

	return &MockRedis{
		Mini:   mini,
		Client: &database.RedisClient{Client: client},
	}
}

// Redis returns the raw go-redis client
func (m *MockRedis) Redis() *redis.Client {
	return m.Client.Client
}
