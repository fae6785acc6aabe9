package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "limiter:"

const redisTimeout = 300 * time.Millisecond

// Limiter counts purchases per caller within fixed windows. A purchase takes a slot with
// Reserve before it runs and gives it back with Release if it is rejected.
type Limiter struct {
	Redis  *redis.Client
	Limit  int
	Window time.Duration
}

// Reserve takes one of caller's slots in the current window. It reports false, leaving
// the counter untouched, when the limit is already reached.
func (l *Limiter) Reserve(ctx context.Context, caller common.Address) (bool, error) {
	key := callerCounterKey(caller, l.Window, time.Now())

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := l.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("can't increment caller's counter: %w", err)
	}

	if val == 1 {
		if err := l.Redis.Expire(ctx, key, l.Window).Err(); err != nil {
			return false, fmt.Errorf("can't set counter expiration: %w", err)
		}
	}

	if val > int64(l.Limit) {
		if err := l.Redis.Decr(ctx, key).Err(); err != nil {
			return false, fmt.Errorf("can't decrement caller's counter: %w", err)
		}
		return false, nil
	}

	return true, nil
}

// Release gives back a slot taken by Reserve.
func (l *Limiter) Release(ctx context.Context, caller common.Address) error {
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := l.Redis.Decr(ctx, callerCounterKey(caller, l.Window, time.Now())).Err(); err != nil {
		return fmt.Errorf("can't decrement caller's counter: %w", err)
	}

	return nil
}

// callerCounterKey builds key which is used to store count of caller's purchases per window.
// It consists of caller's address concatenated to the timestamp rounded down to the start of
// the current window.
func callerCounterKey(caller common.Address, window time.Duration, now time.Time) string {
	ts := now.Truncate(window).Unix()
	return cacheKeyPrefix + caller.Hex() + ":" + strconv.FormatInt(ts, 10)
}
