package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "hijackguard:profile:"

var cacheRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hijackguard",
		Name:      "profile_cache_requests_total",
		Help:      "Profile cache lookups by result",
	},
	[]string{"result"}, // hit, miss, error
)

// CachedRepository is a Redis read-through cache in front of another
// Repository. Redis failures fall through to the backing store; misses in
// the backing store are not cached.
type CachedRepository struct {
	next   Repository
	redis  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewCachedRepository wraps next with a Redis cache
func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedRepository {
	return &CachedRepository{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "profile_cache")),
	}
}

// Get serves from Redis when possible and collapses concurrent misses for
// the same user into one backing-store read.
func (c *CachedRepository) Get(ctx context.Context, userID string) (*UserProfile, error) {
	key := cacheKeyPrefix + userID

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p UserProfile
		uerr := json.Unmarshal(data, &p)
		if uerr == nil {
			cacheRequests.WithLabelValues("hit").Inc()
			return &p, nil
		}
		c.logger.Warn("Discarding undecodable cached profile", zap.String("user_id", userID), zap.Error(uerr))
	case errors.Is(err, redis.Nil):
	default:
		cacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("Profile cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	cacheRequests.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(userID, func() (interface{}, error) {
		p, err := c.next.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	// Every caller sharing the flight gets its own copy
	return v.(*UserProfile).Clone(), nil
}

// Invalidate drops the cached entry for userID
func (c *CachedRepository) Invalidate(ctx context.Context, userID string) error {
	return c.redis.Del(ctx, cacheKeyPrefix+userID).Err()
}

func (c *CachedRepository) store(ctx context.Context, key string, p *UserProfile) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("Failed to encode profile for cache", zap.String("user_id", p.UserID), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Profile cache write failed", zap.String("user_id", p.UserID), zap.Error(err))
	}
}
