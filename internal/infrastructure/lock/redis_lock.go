package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

const lockPrefix = "pushtutor:lock:"

// RedisLocker is a redsync mutex per key. The lock is extended every ttl/2 while fn runs, so
// indexing runs longer than ttl keep ownership; a crashed holder releases it after ttl.
type RedisLocker struct {
	client redis.UniversalClient
	rs     *redsync.Redsync
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisLocker(ctx context.Context, redisURL string, ttl time.Duration, log zerolog.Logger) (*RedisLocker, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}
	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	log.Info().Msg("using redis for per-channel locks")
	return &RedisLocker{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		ttl:    ttl,
		log:    log.With().Str("component", "redis-lock").Logger(),
	}, nil
}

func (r *RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	mutex := r.rs.NewMutex(lockPrefix+key,
		redsync.WithExpiry(r.ttl),
		redsync.WithTries(1<<16),
		redsync.WithRetryDelay(500*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, ctx.Err(), "waiting for lock "+key)
		}
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTransient,
			"failed to acquire lock "+key, err, "3f6a9c2e-1b4d-4e7f-8a0c-5d2e7f9b1c4a")
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(r.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if _, err := mutex.ExtendContext(context.WithoutCancel(ctx)); err != nil {
					r.log.Warn().Err(err).Str("key", key).Msg("failed to extend lock")
				}
			}
		}
	}()

	defer func() {
		close(done)
		<-stopped
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			r.log.Error().Err(err).Str("key", key).Msg("failed to unlock mutex")
		}
	}()

	return fn()
}

func (r *RedisLocker) Close() error {
	return r.client.Close()
}

func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}
		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, err
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if parsed.TLSConfig != nil {
			opts.TLSConfig = parsed.TLSConfig
		}
	}
	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("no redis address in %q", raw)
	}
	if len(opts.Addrs) > 1 {
		opts.DB = 0
	}
	return opts, nil
}
