package waqueue

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucket is a per-instance rate limiter backed by two Redis keys
// (count, last-refill timestamp), consumed atomically via an optimistic
// WATCH/MULTI/EXEC transaction.
type TokenBucket struct {
	redis           *redis.Client
	tokensPerSecond float64
	capacity        int
}

// NewTokenBucket builds a TokenBucket with the given refill rate and cap.
func NewTokenBucket(client *redis.Client, tokensPerSecond float64, capacity int) *TokenBucket {
	return &TokenBucket{redis: client, tokensPerSecond: tokensPerSecond, capacity: capacity}
}

// Acquire blocks (via caller-driven retry with backoff) until one token
// is available for instance, or ctx is cancelled.
func (b *TokenBucket) Acquire(ctx context.Context, instance string) error {
	backoff := 10 * time.Millisecond
	const maxBackoff = time.Second

	for {
		ok, err := b.tryConsume(ctx, instance)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (b *TokenBucket) tryConsume(ctx context.Context, instance string) (bool, error) {
	countKey := bucketKey(instance)
	tsKey := bucketTSKey(instance)

	consumed := false
	err := b.redis.Watch(ctx, func(tx *redis.Tx) error {
		now := time.Now()

		countStr, err := tx.Get(ctx, countKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		tsStr, err := tx.Get(ctx, tsKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}

		count := b.capacity
		last := now
		if countStr != "" {
			count, _ = strconv.Atoi(countStr)
		}
		if tsStr != "" {
			if unix, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
				last = time.Unix(unix, 0)
			}
		}

		elapsed := now.Sub(last).Seconds()
		refill := int(elapsed * b.tokensPerSecond)
		if refill > 0 {
			count += refill
			if count > b.capacity {
				count = b.capacity
			}
			last = now
		}

		if count <= 0 {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, countKey, count, 0)
				pipe.Set(ctx, tsKey, last.Unix(), 0)
				return nil
			})
			return err
		}

		count--
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, countKey, count, 0)
			pipe.Set(ctx, tsKey, last.Unix(), 0)
			return nil
		})
		if err != nil {
			return err
		}
		consumed = true
		return nil
	}, countKey, tsKey)

	if err == redis.TxFailedErr {
		// Another caller's transaction landed first; retry from Acquire's loop.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("waqueue: token bucket transaction: %w", err)
	}
	return consumed, nil
}

// jitter returns d scaled by a random factor in [0.75, 1.25].
func jitter(d time.Duration) time.Duration {
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}
