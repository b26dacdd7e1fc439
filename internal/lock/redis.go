package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = 3 * time.Minute
	defaultWait  = 10 * time.Second
	defaultRetry = 50 * time.Millisecond
	keyPrefix    = "conv-lock:"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var newToken = func() string { return uuid.NewString() }

// Redis is a Locker shared by every process talking to the same Redis. A
// lock expires after its TTL even if never released, so the TTL has to
// outlast the slowest turn: two model calls plus the backend calls.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets how long a lock is held at most.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithWait sets how long Acquire keeps retrying.
func WithWait(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.wait = d
		}
	}
}

// WithRetryInterval sets the pause between attempts.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

// NewRedis returns a Redis locker using client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("lock: redis client must not be nil")
	}
	r := &Redis{client: client, ttl: defaultTTL, wait: defaultWait, retry: defaultRetry}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Acquire takes the lock with SET NX PX, retrying until the wait budget or
// ctx runs out.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	k := keyPrefix + key
	token := newToken()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("lock: acquire %q: %w: %w", key, ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("lock: acquire %q: %w", key, err)
		}
		if ok {
			return r.releaser(k, token), nil
		}
		if time.Now().Add(r.retry).After(deadline) {
			return nil, fmt.Errorf("lock: acquire %q: %w", key, ErrNotAcquired)
		}

		timer := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock: acquire %q: %w: %w", key, ErrNotAcquired, ctx.Err())
		case <-timer.C:
		}
	}
}

func (r *Redis) releaser(k, token string) Release {
	var (
		once sync.Once
		err  error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			if _, runErr := releaseScript.Run(ctx, r.client, []string{k}, token).Result(); runErr != nil {
				err = fmt.Errorf("lock: release %q: %w", k, runErr)
			}
		})
		return err
	}
}
