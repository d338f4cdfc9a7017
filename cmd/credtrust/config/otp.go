package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/zachmann/go-utils/duration"

	"github.com/eduverify/credtrust/otp"
	"github.com/eduverify/credtrust/storage"
	"github.com/eduverify/credtrust/storage/model"
)

// OTP session stores
const (
	otpStoreDB    = "db"
	otpStoreRedis = "redis"
)

// otpConf configures one-time codes.
//
// YAML example:
//
//	otp:
//	  ttl: 10m
//	  max_attempts: 5
//	  store: redis
type otpConf struct {
	TTL duration.DurationOption `yaml:"ttl"`
	// MaxAttempts is the number of wrong codes before a session is
	// locked; 0 disables the cap. It can be changed at runtime through the
	// admin API.
	MaxAttempts int    `yaml:"max_attempts"`
	Store       string `yaml:"store"`
}

var defaultOTPConf = otpConf{
	TTL:         duration.DurationOption(otp.DefaultTTL),
	MaxAttempts: otp.DefaultMaxAttempts,
	Store:       otpStoreDB,
}

func (c *otpConf) validate() error {
	if c.TTL.Duration() < time.Minute {
		return errors.New("ttl must be at least one minute")
	}
	if c.MaxAttempts < 0 {
		return errors.New("max_attempts must not be negative")
	}
	switch c.Store {
	case otpStoreDB, otpStoreRedis:
	default:
		return errors.Errorf("unknown store '%s'", c.Store)
	}
	return nil
}

// OTPStore returns the session store for the configuration. The redis
// store requires a redis client.
func OTPStore(c otpConf, backends model.Backends, client redis.UniversalClient) (model.OTPStore, error) {
	if c.Store != otpStoreRedis {
		return backends.OTP, nil
	}
	if client == nil {
		return nil, errors.New("otp store 'redis' requires cache.redis_addr")
	}
	return storage.NewRedisOTPStorage(client, c.TTL.Duration()), nil
}

// Options returns the otp.Authenticator options for the configuration
func (c *otpConf) Options(kv model.KeyValueStore) []otp.Option {
	return []otp.Option{
		otp.WithTTL(c.TTL.Duration()),
		otp.WithMaxAttempts(c.MaxAttempts),
		otp.WithSettings(kv),
	}
}
