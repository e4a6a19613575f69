package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL  = 30 * time.Second
	defaultWait = 10 * time.Second
	retryEvery  = 50 * time.Millisecond
)

type obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// Redis locks orders across replicas with bsm/redislock. Waiters retry until
// the wait budget or ctx runs out.
type Redis struct {
	client obtainer
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis builds a Redis locker. A zero ttl defaults to 30s.
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration) *Redis {
	return newRedis(redislock.New(rdb), prefix, ttl)
}

func newRedis(client obtainer, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, wait: defaultWait}
}

func (r *Redis) key(orderID int64) string {
	return r.prefix + "lock:" + AttemptKey(orderID)
}

func (r *Redis) Lock(ctx context.Context, orderID int64) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	key := r.key(orderID)
	l, err := r.client.Obtain(waitCtx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryEvery),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", key, err)
	}
	return func() {
		_ = l.Release(context.WithoutCancel(ctx))
	}, nil
}
