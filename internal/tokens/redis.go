package tokens

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked_jti:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisDenylist shares revocations across API instances. Keys carry the
// remaining token TTL so the set cleans itself up.
type RedisDenylist struct {
	redisdb *redis.Client
}

func NewRedisDenylist(cfg RedisConfig) *RedisDenylist {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &RedisDenylist{redisdb: redisdb}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	return d.redisdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.redisdb.Exists(ctx, revokedKeyPrefix+jti).Result()

	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// this ping function checks redis connectivity

func (d *RedisDenylist) Ping(ctx context.Context) error {
	return d.redisdb.Ping(ctx).Err()
}

// this closes the client

func (d *RedisDenylist) Close() error {
	return d.redisdb.Close()
}
