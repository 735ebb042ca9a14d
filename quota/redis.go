package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var reserveScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local cost = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if cur + cost > limit then
	return {0, cur}
end
cur = redis.call('INCRBY', KEYS[1], cost)
if tonumber(ARGV[3]) > 0 then
	redis.call('EXPIRE', KEYS[1], ARGV[3])
end
return {1, cur}
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// RedisLedger keeps the consumed counter in Redis so that every process
// spending the same provider key draws from one budget.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLedger(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLedger {
	return &RedisLedger{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisLedger) key(period string) string {
	return fmt.Sprintf("%s:consumed:%s", r.prefix, period)
}

func (r *RedisLedger) Reserve(ctx context.Context, period string, cost, limit int64) (bool, error) {
	res, err := reserveScript.Run(ctx, r.client, []string{r.key(period)}, cost, limit, int64(r.ttl.Seconds())).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("could not reserve quota: %w", err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected reserve reply %v", res)
	}
	return res[0] == 1, nil
}

func (r *RedisLedger) Consumed(ctx context.Context, period string) (int64, error) {
	consumed, err := r.client.Get(ctx, r.key(period)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("could not read consumed quota: %w", err)
	}
	return consumed, nil
}

// RedisLock is a lease with an expiry. The holder renews it every third of
// the ttl until it releases, so the ttl only bounds how long a crashed
// holder keeps others out.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (r *RedisLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			releaseScript.Run(ctx, r.client, []string{r.key}, token)
		})
	}
	return release, true, nil
}

// renew extends the lease while it still carries token. It gives up once
// the lease is lost.
func (r *RedisLock) renew(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if r.ttl/3 <= 0 {
		<-stop
		return
	}

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
			held, err := renewScript.Run(ctx, r.client, []string{r.key}, token, r.ttl.Milliseconds()).Int64()
			cancel()
			if err == nil && held == 0 {
				return
			}
		}
	}
}
