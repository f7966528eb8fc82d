package app

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	redisclient "github.com/stockcast/stockcast-backend/internal/clients/redis"
	"github.com/stockcast/stockcast-backend/internal/platform/envutil"
	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/repos"
)

type CacheProvider string

const (
	CacheProviderPostgres CacheProvider = "postgres"
	CacheProviderRedis    CacheProvider = "redis"
)

type CacheProviderConfigError struct {
	Value string
}

func (e *CacheProviderConfigError) Error() string {
	return fmt.Sprintf("invalid cache provider config (CACHE_PROVIDER=%q): want %q or %q",
		e.Value, CacheProviderPostgres, CacheProviderRedis)
}

type CacheProviderConfig struct {
	Provider CacheProvider
}

func resolveCacheProviderConfig() (CacheProviderConfig, error) {
	raw := strings.ToLower(strings.TrimSpace(envutil.String("CACHE_PROVIDER", string(CacheProviderPostgres))))
	switch CacheProvider(raw) {
	case CacheProviderPostgres:
		return CacheProviderConfig{Provider: CacheProviderPostgres}, nil
	case CacheProviderRedis:
		return CacheProviderConfig{Provider: CacheProviderRedis}, nil
	default:
		return CacheProviderConfig{}, &CacheProviderConfigError{Value: raw}
	}
}

func wirePredictionCache(cfg CacheProviderConfig, db *gorm.DB, log *logger.Logger) (repos.PredictionCache, error) {
	switch cfg.Provider {
	case CacheProviderRedis:
		cache, err := redisclient.NewPredictionCache(log)
		if err != nil {
			return nil, fmt.Errorf("init redis prediction cache: %w", err)
		}
		return cache, nil
	default:
		return repos.NewPredictionCacheRepo(db, log), nil
	}
}
