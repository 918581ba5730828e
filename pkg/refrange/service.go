package refrange

import (
	"context"
	"encoding/json"
	"time"

	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// ConfigStore is the persistence surface the service needs. *Repository
// implements it; tests use an in-memory fake.
type ConfigStore interface {
	ActiveConfigs(ctx context.Context, testCode string) ([]Config, error)
	SyncConfigs(ctx context.Context, items []models.RangeConfigItem) (int, error)
	Deactivate(ctx context.Context, testCode, gender string) error
}

// Service resolves reference ranges with a redis read-through cache in front
// of the store. The store is read-heavy and written only by admin syncs, so
// cached config sets are invalidated per test code on sync.
type Service struct {
	store ConfigStore
	cache *redis.Client
	ttl   time.Duration
}

func NewService(store ConfigStore, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{store: store, cache: cache, ttl: ttl}
}

// ResolveRange returns the applicable range for (testCode, gender) or
// ErrRangeNotFound. A gender-agnostic config always wins over a
// gender-specific one.
func (s *Service) ResolveRange(ctx context.Context, testCode, gender string) (*Config, error) {
	configs, err := s.activeConfigs(ctx, NormalizeCode(testCode))
	if err != nil {
		return nil, err
	}
	cfg, ok := Resolve(configs, gender)
	if !ok {
		return nil, ErrRangeNotFound
	}
	return cfg, nil
}

// Sync applies a config batch and drops cached entries for the touched codes.
func (s *Service) Sync(ctx context.Context, items []models.RangeConfigItem) (int, error) {
	applied, err := s.store.SyncConfigs(ctx, items)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		s.invalidate(ctx, NormalizeCode(item.TestCode))
	}
	return applied, nil
}

// Retire deactivates one range key and drops its cached config set.
func (s *Service) Retire(ctx context.Context, testCode, gender string) error {
	if err := s.store.Deactivate(ctx, testCode, gender); err != nil {
		return err
	}
	s.invalidate(ctx, NormalizeCode(testCode))
	return nil
}

// SeedFromCatalog pushes a startup catalog through the normal sync path so
// boot exercises the same upsert contract as the admin API.
func (s *Service) SeedFromCatalog(ctx context.Context, path string) error {
	catalog, err := LoadCatalog(path)
	if err != nil {
		return err
	}
	applied, err := s.Sync(ctx, catalog.Items())
	if err != nil {
		return err
	}
	logger.Log.WithField("applied", applied).Info("Reference range catalog seeded")
	return nil
}

func (s *Service) activeConfigs(ctx context.Context, code string) ([]Config, error) {
	key := cacheKey(code)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var configs []Config
			if err := json.Unmarshal(raw, &configs); err == nil {
				return configs, nil
			}
		} else if err != redis.Nil {
			logger.Log.WithError(err).WithField("test_code", code).Warn("range cache read failed")
		}
	}

	configs, err := s.store.ActiveConfigs(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(configs); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				logger.Log.WithError(err).WithField("test_code", code).Warn("range cache write failed")
			}
		}
	}
	return configs, nil
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(code)).Err(); err != nil {
		logger.Log.WithError(err).WithField("test_code", code).Warn("range cache invalidation failed")
	}
}

func cacheKey(code string) string {
	return "refrange:cfg:" + code
}
