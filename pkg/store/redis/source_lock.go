package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"verifier/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrSourceLockTimeout the per-source lock could not be acquired in time
var ErrSourceLockTimeout = errors.New("timed out waiting for source lock")

const (
	sourceLockPrefix   = "verifier:source-lock:"
	sourceLockTTL      = 2 * time.Minute
	sourceLockRetryGap = 50 * time.Millisecond
)

// SourceLocker serialises writers of one monitored source
type SourceLocker interface {
	// Lock blocks until the source lock is held or ctx / timeout expires.
	// The returned func releases it.
	Lock(ctx context.Context, sourceID string) (func(), error)
}

// NewSourceLocker returns a Redis-backed locker, or an in-process one when client is nil
func NewSourceLocker(client *redis.Client, timeout time.Duration) SourceLocker {
	if client == nil {
		return &localSourceLocker{timeout: timeout, locks: make(map[string]chan struct{})}
	}
	return newRedisSourceLocker(client, timeout, sourceLockTTL)
}

func newRedisSourceLocker(client *redis.Client, timeout, ttl time.Duration) *redisSourceLocker {
	return &redisSourceLocker{client: client, timeout: timeout, ttl: ttl}
}

// redisSourceLocker keeps its key alive while held, so a long SaveResult
// transaction never outlives the lock
type redisSourceLocker struct {
	client  *redis.Client
	timeout time.Duration
	ttl     time.Duration
}

func (l *redisSourceLocker) Lock(ctx context.Context, sourceID string) (func(), error) {
	key := sourceLockPrefix + sourceID
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire source lock %s: %w", sourceID, err)
		}
		if ok {
			stop := make(chan struct{})
			go l.renew(key, token, stop)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					releaseScript.Run(context.Background(), l.client, []string{key}, token)
				})
			}, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrSourceLockTimeout, sourceID)
		case <-time.After(sourceLockRetryGap):
		}
	}
}

// renew extends the key every third of its TTL until stop is closed or the key
// is no longer ours
func (l *redisSourceLocker) renew(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok, err := renewScript.Run(context.Background(), l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
			if err != nil || ok == 0 {
				logger.WarnCtx(context.Background(), "source lock %s lost during renewal: %v", key, err)
				return
			}
		}
	}
}

// localSourceLocker keyed mutex with timeout, one buffered channel per source
type localSourceLocker struct {
	timeout time.Duration
	mu      sync.Mutex
	locks   map[string]chan struct{}
}

func (l *localSourceLocker) Lock(ctx context.Context, sourceID string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[sourceID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[sourceID] = ch
	}
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrSourceLockTimeout, sourceID)
	}
}
