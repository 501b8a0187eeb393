package ratelimitsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/toure-cloud/institutdeveloppement/core"
)

const keyPrefix = "rl:"

// Result of a hit against a fixed window.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits per key within fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func result(count int64, limit int, ttl time.Duration) Result {
	res := Result{Allowed: count <= int64(limit), Remaining: limit - int(count)}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

type redisLimiter struct {
	client redis.UniversalClient
	name   string
	limit  int
	window time.Duration
}

// NewRedisLimiter shares its counters between instances through redis.
func NewRedisLimiter(client redis.UniversalClient, name string, limit int, window time.Duration) Limiter {
	return &redisLimiter{client: client, name: name, limit: limit, window: window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := keyPrefix + l.name + ":" + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "counting rate limit hit")
	}
	return result(incr.Val(), l.limit, ttl.Val()), nil
}

type window struct {
	count   int64
	expires time.Time
}

type memoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	length  time.Duration
	now     func() time.Time
}

// NewMemoryLimiter keeps its counters in process. Used when no redis is configured.
func NewMemoryLimiter(limit int, length time.Duration) Limiter {
	return &memoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		length:  length,
		now:     time.Now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.expires) {
		l.sweep(now)
		w = &window{expires: now.Add(l.length)}
		l.windows[key] = w
	}
	w.count++
	return result(w.count, l.limit, w.expires.Sub(now)), nil
}

// sweep drops expired windows. Callers hold the lock.
func (l *memoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.expires) {
			delete(l.windows, k)
		}
	}
}

// Limiters groups the limiters of the rate-limited endpoints.
type Limiters struct {
	Login         Limiter
	Register      Limiter
	PasswordReset Limiter
}

// NewLimiters builds the endpoint limiters, backed by redis when a client is given.
func NewLimiters(client *redis.Client, conf *core.Config) *Limiters {
	build := func(name string, limit int) Limiter {
		if client == nil {
			return NewMemoryLimiter(limit, conf.RateLimit.Window)
		}
		return NewRedisLimiter(client, name, limit, conf.RateLimit.Window)
	}
	return &Limiters{
		Login:         build("login", conf.RateLimit.Login),
		Register:      build("register", conf.RateLimit.Register),
		PasswordReset: build("password_reset", conf.RateLimit.PasswordReset),
	}
}

// NewRedisClient returns nil when no redis URL is configured.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	if conf.Redis.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(conf.Redis.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}
