package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"fundledger/internal/cache"
	"fundledger/internal/core"
	applog "fundledger/internal/log"
	"fundledger/internal/ports"
)

// EnterpriseCacheKey is the cache key holding the full enterprise list.
const EnterpriseCacheKey = "enterprises:all"

// DefaultEnterpriseTTL is how long a fetched enterprise list stays cached.
const DefaultEnterpriseTTL = 5 * time.Minute

// EnterpriseSource supplies enterprise records to a budget view.
type EnterpriseSource interface {
	Enterprises(ctx context.Context) ([]core.EnterpriseRecord, error)
}

// CachedEnterpriseSource reads through a cache in front of the repository.
// Concurrent misses share one repository call.
type CachedEnterpriseSource struct {
	repo   ports.EnterpriseRepository
	cache  cache.Cache[[]core.EnterpriseRecord]
	ttl    time.Duration
	group  singleflight.Group
	logger *applog.Logger
}

func NewCachedEnterpriseSource(repo ports.EnterpriseRepository, c cache.Cache[[]core.EnterpriseRecord], ttl time.Duration, logger *applog.Logger) *CachedEnterpriseSource {
	if ttl <= 0 {
		ttl = DefaultEnterpriseTTL
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &CachedEnterpriseSource{
		repo:   repo,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Enterprises returns the cached list, fetching and caching it on a miss.
func (s *CachedEnterpriseSource) Enterprises(ctx context.Context) ([]core.EnterpriseRecord, error) {
	if records, ok := s.cache.Get(EnterpriseCacheKey); ok {
		s.logger.DebugContext(ctx, "Enterprise cache hit",
			applog.FieldCacheKey, EnterpriseCacheKey,
			applog.FieldCount, len(records))
		return records, nil
	}

	v, err, shared := s.group.Do(EnterpriseCacheKey, func() (any, error) {
		// a call that just finished may have filled it
		if records, ok := s.cache.Get(EnterpriseCacheKey); ok {
			return records, nil
		}
		records, err := s.repo.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(EnterpriseCacheKey, records, s.ttl)
		return records, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get enterprises: %w", err)
	}

	records := v.([]core.EnterpriseRecord)
	s.logger.DebugContext(ctx, "Enterprise cache miss",
		applog.FieldCacheKey, EnterpriseCacheKey,
		applog.FieldCount, len(records),
		"shared", shared)
	return records, nil
}

// Invalidate drops the cached list so the next call hits the repository.
func (s *CachedEnterpriseSource) Invalidate() {
	s.cache.Delete(EnterpriseCacheKey)
}
