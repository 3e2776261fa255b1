package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxCallbackFailures      int
	CallbackCooldownDuration time.Duration
}

// Limiter counts failed callbacks per client IP using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckCallback reports [ErrRateLimited] once ip has MaxCallbackFailures
// failures inside the current window.
func (l *Limiter) CheckCallback(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	count, err := l.redis.Get(ctx, callbackIPKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxCallbackFailures) {
		return ErrRateLimited
	}
	return nil
}

// IncrementCallback records a failed callback for ip.
func (l *Limiter) IncrementCallback(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	_, err := l.incrementWithTTL(ctx, callbackIPKey(ip), l.config.CallbackCooldownDuration)
	return err
}

// ResetCallback clears the failure counter for ip after a successful login.
func (l *Limiter) ResetCallback(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	if err := l.redis.Del(ctx, callbackIPKey(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CallbackFailures returns the current failure count for ip.
func (l *Limiter) CallbackFailures(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, callbackIPKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func callbackIPKey(ip string) string {
	return "pcb:" + ip
}
