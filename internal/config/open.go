package config

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/store"
)

const connectTimeout = 5 * time.Second

// OpenCache returns the configured scan cache. When Redis is unreachable
// the file cache is used instead and a warning is logged.
func (c *Config) OpenCache(ctx context.Context, logger *log.Logger) (cache.Cache, error) {
	switch c.Cache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
			Prefix:   c.Cache.Redis.Prefix,
		})
		if err == nil {
			return rc, nil
		}
		if logger != nil {
			logger.Warn("redis cache unavailable, using file cache", "addr", c.Cache.Redis.Addr, "err", err)
		}
	}
	fc, err := cache.NewFileCache(c.Cache.Dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// OpenStore returns the configured snapshot store.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	if c.Store.Backend == BackendMongo {
		ms, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:      c.Store.Mongo.URI,
			Database: c.Store.Mongo.Database,
			Timeout:  connectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return ms, nil
	}
	fs, err := store.NewFileStore(c.Store.Dir)
	if err != nil {
		return nil, err
	}
	return fs, nil
}
