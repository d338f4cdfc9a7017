package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/duration"

	"github.com/eduverify/credtrust/internal/cache"
)

type cachingConf struct {
	RedisAddr   string                  `yaml:"redis_addr"`
	Username    string                  `yaml:"username"`
	Password    string                  `yaml:"password"`
	RedisDB     int                     `yaml:"redis_db"`
	Disabled    bool                    `yaml:"disabled"`
	MaxLifetime duration.DurationOption `yaml:"max_lifetime"`
	// MaxSize bounds the number of entries of the in-memory cache
	MaxSize int `yaml:"max_size"`
}

var defaultCachingConf = cachingConf{
	MaxLifetime: duration.DurationOption(5 * time.Second),
	MaxSize:     10000,
}

func (c *cachingConf) validate() error {
	if c.MaxLifetime.Duration() < 0 {
		return errors.New("max_lifetime must not be negative")
	}
	if c.MaxSize < 0 {
		return errors.New("max_size must not be negative")
	}
	return nil
}

// RedisClient returns a client for the configured redis server or nil if
// none is configured
func (c *cachingConf) RedisClient() redis.UniversalClient {
	if c.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(
		&redis.Options{
			Addr:     c.RedisAddr,
			Username: c.Username,
			Password: c.Password,
			DB:       c.RedisDB,
		},
	)
}

// LoadCache returns the cache for the configuration; redis is used if
// an address is configured, otherwise an in-memory cache
func LoadCache(ctx context.Context, c cachingConf, client redis.UniversalClient) (cache.Cache, error) {
	if c.Disabled {
		log.Info("caching is disabled")
		return cache.Nop{}, nil
	}
	if client != nil {
		rc, err := cache.NewRedisCache(ctx, client)
		if err != nil {
			return nil, errors.Wrap(err, "could not init redis cache")
		}
		log.Info("Loaded Redis Cache")
		return rc, nil
	}
	return cache.NewMemoryCache(c.MaxSize), nil
}
