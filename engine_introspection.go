package rolegate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/rolegate/store"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Health pings the store when it supports it. Stores without a Ping method
// are reported available.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}

	status := HealthStatus{RedisThrottle: e.attempts != nil}
	p, ok := e.store.(pinger)
	if !ok {
		status.StoreAvailable = true
		return status
	}

	start := time.Now()
	err := p.Ping(ctx)
	status.StoreLatency = time.Since(start)
	status.StoreAvailable = err == nil
	return status
}

// SignInAttempts returns the failed sign-in count for email inside the
// current window. It needs the Redis throttle; the in-process throttle does
// not count attempts and returns 0.
func (e *Engine) SignInAttempts(ctx context.Context, email string) (int, error) {
	if e == nil || e.throttle == nil {
		return 0, ErrEngineNotReady
	}
	if e.attempts == nil || email == "" {
		return 0, nil
	}

	n, err := e.attempts.Attempts(ctx, store.NormalizeEmail(email))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}
