package revocationsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:jti:"

// List tracks logged-out tokens until they expire.
type List interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type redisList struct {
	client *redis.Client
}

func NewRedisList(client *redis.Client) List {
	return &redisList{client: client}
}

func (l *redisList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return errors.Wrap(l.client.Set(ctx, keyPrefix+jti, "1", ttl).Err(), "revoking token")
}

func (l *redisList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := l.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking token revocation")
	}
	return n > 0, nil
}

type memoryList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryList() List {
	return &memoryList{revoked: make(map[string]time.Time), now: time.Now}
}

func (l *memoryList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, exp := range l.revoked {
		if !now.Before(exp) {
			delete(l.revoked, k)
		}
	}
	l.revoked[jti] = now.Add(ttl)
	return nil
}

func (l *memoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.revoked[jti]
	return ok && l.now().Before(exp), nil
}

// New picks the redis list when a client is configured.
func New(client *redis.Client) List {
	if client == nil {
		return NewMemoryList()
	}
	return NewRedisList(client)
}
