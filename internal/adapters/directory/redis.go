// Package directory resolves user ids to public profiles. The profile
// store is owned by the CRUD layer; this adapter only reads it, through a
// read-through cache so a busy stream chat does not hammer Redis once per
// message.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

const (
	keyPrefix = "user:"

	maxCachedProfiles = 16384
)

type RedisDirectory struct {
	rdb     *redis.Client
	cache   *otter.Cache[string, domain.Identity]
	timeout time.Duration
}

func NewRedis(addr, password string, db int, ttl, timeout time.Duration) (*RedisDirectory, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	cache, err := otter.New(&otter.Options[string, domain.Identity]{
		MaximumSize:      maxCachedProfiles,
		ExpiryCalculator: otter.ExpiryWriting[string, domain.Identity](ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("directory cache: %w", err)
	}
	d := &RedisDirectory{
		rdb:     redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		cache:   cache,
		timeout: timeout,
	}
	log.Info().Str("module", "directory").Str("addr", addr).Msg("redis directory ready")
	return d, nil
}

// Lookup returns the cached profile, loading from Redis on a miss. Unknown
// users are an error; the caller degrades to a bare identity.
func (d *RedisDirectory) Lookup(ctx context.Context, id domain.UserID) (domain.Identity, error) {
	identity, err := d.cache.Get(ctx, string(id), otter.LoaderFunc[string, domain.Identity](d.load))
	if err != nil {
		if errors.Is(err, otter.ErrNotFound) {
			return domain.Identity{}, fmt.Errorf("user %s not found", id)
		}
		return domain.Identity{}, err
	}
	return identity, nil
}

func (d *RedisDirectory) load(ctx context.Context, key string) (domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	fields, err := d.rdb.HGetAll(ctx, keyPrefix+key).Result()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("directory fetch: %w", err)
	}
	if len(fields) == 0 {
		return domain.Identity{}, otter.ErrNotFound
	}
	return domain.Identity{
		UserID:   domain.UserID(key),
		Name:     fields["name"],
		Username: fields["username"],
		Avatar:   fields["avatar"],
	}, nil
}

func (d *RedisDirectory) Close() error {
	return d.rdb.Close()
}
