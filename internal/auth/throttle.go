package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coursehub/coursehub/internal/shared"
)

// Throttle counts failed sign-in attempts per (login, client IP) in Redis
// and blocks further attempts once the limit is reached within the window.
// A nil client disables throttling.
type Throttle struct {
	client *redis.Client
	logger *slog.Logger
	max    int
	window time.Duration
}

// NewThrottle constructs a sign-in throttle.
func NewThrottle(client *redis.Client, logger *slog.Logger, max int, window time.Duration) *Throttle {
	return &Throttle{client: client, logger: logger, max: max, window: window}
}

// Allow reports whether another sign-in attempt is permitted. Redis being
// unreachable fails open: the throttle protects against brute force, it must
// not take sign-in down with it.
func (t *Throttle) Allow(ctx context.Context, login, ip string) error {
	if t == nil || t.client == nil {
		return nil
	}
	count, err := t.client.Get(ctx, t.key(login, ip)).Int()
	if err != nil {
		if err != redis.Nil && t.logger != nil {
			t.logger.Warn("signin throttle read", slog.Any("error", err))
		}
		return nil
	}
	if count >= t.max {
		return shared.ErrTooManyAttempts
	}
	return nil
}

// RecordFailure increments the failure counter and refreshes the window.
func (t *Throttle) RecordFailure(ctx context.Context, login, ip string) {
	if t == nil || t.client == nil {
		return
	}
	key := t.key(login, ip)
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.window)
	if _, err := pipe.Exec(ctx); err != nil && t.logger != nil {
		t.logger.Warn("signin throttle record", slog.Any("error", err))
	}
}

// Reset clears the failure counter after a successful sign-in.
func (t *Throttle) Reset(ctx context.Context, login, ip string) {
	if t == nil || t.client == nil {
		return
	}
	if err := t.client.Del(ctx, t.key(login, ip)).Err(); err != nil && t.logger != nil {
		t.logger.Warn("signin throttle reset", slog.Any("error", err))
	}
}

func (t *Throttle) key(login, ip string) string {
	return "signin:fail:" + login + ":" + ip
}
