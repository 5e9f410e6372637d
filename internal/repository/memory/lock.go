package memory

import (
	"context"
	"sync"
	"time"

	"github.com/doaqui/doaqui/internal/repository"
)

// Lock implements repository.DistributedLock in process memory.
// Suitable for single-node deployments; locks are not shared across
// instances or process restarts.
type Lock struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewLock creates a new in-memory lock.
func NewLock() *Lock {
	return &Lock{locks: make(map[string]time.Time)}
}

// Acquire attempts to acquire a lock.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiresAt, held := l.locks[key]; held && now.Before(expiresAt) {
		return false, nil
	}

	l.locks[key] = now.Add(ttl)
	return true, nil
}

// Release releases a lock.
func (l *Lock) Release(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.locks[key]; !held {
		return false, nil
	}
	delete(l.locks, key)
	return true, nil
}

// Ensure Lock implements repository.DistributedLock.
var _ repository.DistributedLock = (*Lock)(nil)
