package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type statsRepository interface {
	Stats(ctx context.Context, department string) (*models.ComplaintStats, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveDBQuery(label string, duration time.Duration)
}

const statsCacheKeyPrefix = "stats:complaints:"

// StatsService serves the complaint stats overview with a Redis cache in
// front of the aggregate query. Department-scoped staff only ever see their
// own department's counts.
type StatsService struct {
	repo    statsRepository
	cache   statsCache
	metrics cacheObserver
	logger  *zap.Logger
	ttl     time.Duration
}

// NewStatsService constructs a StatsService.
func NewStatsService(repo statsRepository, cache statsCache, metrics cacheObserver, logger *zap.Logger, ttl time.Duration) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsService{repo: repo, cache: cache, metrics: metrics, logger: logger, ttl: ttl}
}

// Overview returns complaint counts for the actor's visible scope. The bool
// result reports whether the payload came from cache.
func (s *StatsService) Overview(ctx context.Context, actor *models.User) (*models.ComplaintStats, bool, error) {
	department := ""
	if actor != nil && actor.Role.DepartmentScoped() {
		department = actor.DepartmentID()
	}

	key := statsCacheKeyPrefix + "city"
	if department != "" {
		key = statsCacheKeyPrefix + department
	}

	if s.cache != nil {
		start := time.Now()
		var cached models.ComplaintStats
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true, time.Since(start))
			}
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false, time.Since(start))
		}
	}

	start := time.Now()
	stats, err := s.repo.Stats(ctx, department)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate stats")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("complaint_stats", time.Since(start))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, false, nil
}

// Invalidate drops every cached stats payload. Called after any complaint
// mutation so counts never serve stale beyond the TTL.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("%s*", statsCacheKeyPrefix)); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}
