// Package lease provides the per-dataset mutual exclusion that keeps two runs
// from driving the same checkpoint at once.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-redis/redis"
	"github.com/google/uuid"

	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

const moduleName = "lease"

// Lease is a named, time-bounded, renewable lock.
type Lease interface {
	// Acquire takes the lease or fails with exception.ErrLeaseHeld.
	Acquire(ctx context.Context) error
	// Renew extends the lease or fails with exception.ErrLeaseLost when it is no longer owned.
	Renew(ctx context.Context) error
	// Release gives the lease up. Releasing a lease that is not owned is a no-op.
	Release(ctx context.Context) error
}

var renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

// RedisLease is a Lease stored as a redis string holding the owner token with a TTL.
type RedisLease struct {
	db       redis.UniversalClient
	key      string
	token    string
	ttl      time.Duration
	attempts uint
	delay    time.Duration
}

var _ Lease = (*RedisLease)(nil)

// NewRedisLease creates a lease on key. Acquire tries up to attempts times, delay apart.
func NewRedisLease(db redis.UniversalClient, key string, ttl time.Duration, attempts uint, delay time.Duration) *RedisLease {
	if attempts == 0 {
		attempts = 1
	}
	return &RedisLease{
		db:       db,
		key:      key,
		token:    uuid.NewString(),
		ttl:      ttl,
		attempts: attempts,
		delay:    delay,
	}
}

// Key returns the redis key of the lease.
func (l *RedisLease) Key() string {
	return l.key
}

// Token returns the owner token this lease writes.
func (l *RedisLease) Token() string {
	return l.token
}

// Acquire implements Lease.
func (l *RedisLease) Acquire(ctx context.Context) error {
	return retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := l.db.SetNX(l.key, l.token, l.ttl).Result()
			if err != nil {
				return exception.NewBatchError(moduleName, fmt.Sprintf("failed to acquire lease %q", l.key), err, exception.CategoryTransient)
			}
			if !ok {
				holder, _ := l.db.Get(l.key).Result()
				return exception.NewLeaseHeldError(moduleName, fmt.Sprintf("lease %q is held by %s", l.key, holder), nil)
			}
			return nil
		},
		retry.Attempts(l.attempts),
		retry.Delay(l.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
}

// Renew implements Lease.
func (l *RedisLease) Renew(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := renewScript.Run(l.db, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to renew lease %q", l.key), err, exception.CategoryTransient)
	}
	if res != 1 {
		return exception.NewBatchError(moduleName, fmt.Sprintf("lease %q is no longer owned", l.key), exception.ErrLeaseLost, exception.CategoryLease)
	}
	return nil
}

// Release implements Lease.
func (l *RedisLease) Release(ctx context.Context) error {
	res, err := releaseScript.Run(l.db, []string{l.key}, l.token).Int64()
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to release lease %q", l.key), err, exception.CategoryTransient)
	}
	if res != 1 {
		logger.Warnf("Lease %q was not owned at release.", l.key)
	}
	return nil
}

// NoopLease is used when leasing is disabled.
type NoopLease struct{}

func (NoopLease) Acquire(ctx context.Context) error { return nil }
func (NoopLease) Renew(ctx context.Context) error   { return nil }
func (NoopLease) Release(ctx context.Context) error { return nil }

// KeepAlive renews l every interval until stop is called. A transient renewal error is
// retried until the lease would expire, ttl after the last successful renewal. A lost lease
// or a renewal still failing at expiry cancels the returned context with the error as its cause.
// stop waits for the renewal goroutine to exit and then cancels the context.
func KeepAlive(ctx context.Context, l Lease, interval, ttl time.Duration) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		renewed := time.Now()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				started := time.Now()
				if err := renewUntil(runCtx, l, interval, renewed.Add(ttl)); err != nil {
					logger.Errorf("Lease renewal failed, cancelling run: %v", err)
					cancel(err)
					return
				}
				renewed = started
				logger.Debugf("Lease renewed.")
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			cancel(nil)
		})
	}
	return runCtx, stop
}

// renewUntil renews l, retrying transient errors every interval/4 while the next attempt
// would still start before expires.
func renewUntil(ctx context.Context, l Lease, interval time.Duration, expires time.Time) error {
	delay := interval / 4
	if delay <= 0 {
		delay = time.Millisecond
	}
	attempts := uint(1)
	if remaining := time.Until(expires); remaining > delay {
		attempts += uint(remaining / delay)
	}
	return retry.Do(
		func() error { return l.Renew(ctx) },
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && exception.IsTemporary(err) && time.Now().Add(delay).Before(expires)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("Lease renewal attempt %d failed, retrying: %v", n+1, err)
		}),
	)
}
