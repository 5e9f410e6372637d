package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/doaqui/doaqui/internal/repository"
)

// Lock implements repository.DistributedLock using Redis SET NX.
// Each instance holds a unique token so only the acquirer can release.
type Lock struct {
	client *goredis.Client
	token  string
}

// NewLock creates a new Redis distributed lock with the given owner token.
func NewLock(client *goredis.Client, token string) *Lock {
	return &Lock{client: client, token: token}
}

// Acquire attempts to acquire a lock with SET NX.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return ok, nil
}

// releaseScript deletes the key only if we still own it.
var releaseScript = goredis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Release releases a lock if this instance holds it.
func (l *Lock) Release(ctx context.Context, key string) (bool, error) {
	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, l.token).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
	return deleted == 1, nil
}

// Ensure Lock implements repository.DistributedLock.
var _ repository.DistributedLock = (*Lock)(nil)
