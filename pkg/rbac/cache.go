package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/quizdeck/quizdeck/pkg/observability"
)

// redisAbsent marks a key known to have no customization, so absence is
// cached too and a missing record costs one lookup, not one per request.
const redisAbsent = "absent"

// cacheEntry wraps a lookup result; a nil customization means the key
// is known absent.
type cacheEntry struct {
	customization *TenantRoleCustomization
}

// CachedStoreConfig configures the customization cache layers
type CachedStoreConfig struct {
	// L1Size is the in-process LRU capacity.
	L1Size int

	// L1TTL bounds in-process staleness for writes made by other
	// instances. Writes through this store invalidate immediately;
	// the TTL only caps how long a foreign write can be masked.
	L1TTL time.Duration

	// RedisTTL bounds the shared cache entries.
	RedisTTL time.Duration
}

// DefaultCachedStoreConfig returns the default cache settings
func DefaultCachedStoreConfig() CachedStoreConfig {
	return CachedStoreConfig{
		L1Size:   4096,
		L1TTL:    5 * time.Second,
		RedisTTL: 5 * time.Minute,
	}
}

// CachedStore layers an in-process LRU and an optional shared Redis
// cache over a CustomizationStore. All writes invalidate both layers
// before returning, so a deletion is visible to the very next read
// through this store.
type CachedStore struct {
	inner   CustomizationStore
	l1      *expirable.LRU[string, cacheEntry]
	redis   *redis.Client // nil disables the shared layer
	cfg     CachedStoreConfig
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewCachedStore wraps a store with caching. redisClient may be nil.
func NewCachedStore(inner CustomizationStore, redisClient *redis.Client, cfg CachedStoreConfig, logger *observability.Logger, metrics *observability.Metrics) *CachedStore {
	if cfg.L1Size <= 0 {
		cfg = DefaultCachedStoreConfig()
	}
	return &CachedStore{
		inner:   inner,
		l1:      expirable.NewLRU[string, cacheEntry](cfg.L1Size, nil, cfg.L1TTL),
		redis:   redisClient,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

func cacheKey(tenantID, roleID string) string {
	return fmt.Sprintf("authz:custom:%s:%s", tenantID, NormalizeRoleID(roleID))
}

// List always reads through to the underlying store
func (s *CachedStore) List(ctx context.Context, tenantID string) ([]*TenantRoleCustomization, error) {
	return s.inner.List(ctx, tenantID)
}

// Get serves from L1, then Redis, then the underlying store
func (s *CachedStore) Get(ctx context.Context, tenantID, roleID string) (*TenantRoleCustomization, error) {
	key := cacheKey(tenantID, roleID)

	if entry, ok := s.l1.Get(key); ok {
		s.observeCache("l1", true)
		return entry.customization, nil
	}
	s.observeCache("l1", false)

	if s.redis != nil {
		customization, found, err := s.getFromRedis(ctx, key)
		if err != nil {
			// A cache outage degrades to a database read.
			s.logger.WithError(err).Debug("Redis customization lookup failed")
		} else if found {
			s.observeCache("redis", true)
			s.l1.Add(key, cacheEntry{customization: customization})
			return customization, nil
		} else {
			s.observeCache("redis", false)
		}
	}

	customization, err := s.inner.Get(ctx, tenantID, roleID)
	if err != nil {
		return nil, err
	}

	s.l1.Add(key, cacheEntry{customization: customization})
	s.setInRedis(ctx, key, customization)
	return customization, nil
}

// Upsert writes through and invalidates both cache layers
func (s *CachedStore) Upsert(ctx context.Context, customization *TenantRoleCustomization) error {
	if err := s.inner.Upsert(ctx, customization); err != nil {
		return err
	}
	s.invalidate(ctx, cacheKey(customization.TenantID, customization.RoleID))
	return nil
}

// Delete removes the record and invalidates both cache layers
func (s *CachedStore) Delete(ctx context.Context, tenantID, roleID string) error {
	if err := s.inner.Delete(ctx, tenantID, roleID); err != nil {
		return err
	}
	s.invalidate(ctx, cacheKey(tenantID, roleID))
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, key string) {
	s.l1.Remove(key)
	if s.redis != nil {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			// The TTL bounds how long the stale entry can survive.
			s.logger.WithError(err).WithField("key", key).Warn("Failed to invalidate customization in Redis")
		}
	}
}

func (s *CachedStore) getFromRedis(ctx context.Context, key string) (*TenantRoleCustomization, bool, error) {
	data, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if data == redisAbsent {
		return nil, true, nil
	}

	var customization TenantRoleCustomization
	if err := json.Unmarshal([]byte(data), &customization); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached customization: %w", err)
	}
	return &customization, true, nil
}

func (s *CachedStore) setInRedis(ctx context.Context, key string, customization *TenantRoleCustomization) {
	if s.redis == nil {
		return
	}

	value := redisAbsent
	if customization != nil {
		data, err := json.Marshal(customization)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to encode customization for cache")
			return
		}
		value = string(data)
	}

	if err := s.redis.Set(ctx, key, value, s.cfg.RedisTTL).Err(); err != nil {
		s.logger.WithError(err).Debug("Failed to populate customization cache")
	}
}

func (s *CachedStore) observeCache(layer string, hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues(layer).Inc()
	} else {
		s.metrics.CacheMissesTotal.WithLabelValues(layer).Inc()
	}
}
