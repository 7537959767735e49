package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localSweepEvery = 256

// Local is an in-process token-bucket throttle for single-node deployments.
type Local struct {
	mu      sync.Mutex
	config  Config
	now     func() time.Time
	buckets map[string]*bucket
	calls   int
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

var _ Throttle = (*Local)(nil)

// NewLocal returns a Local throttle.
func NewLocal(cfg Config) *Local {
	return NewLocalWithClock(cfg, time.Now)
}

// NewLocalWithClock returns a Local throttle reading time from now.
func NewLocalWithClock(cfg Config, now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{
		config:  cfg,
		now:     now,
		buckets: make(map[string]*bucket),
	}
}

func (l *Local) Check(_ context.Context, email, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for _, key := range l.keys(email, ip) {
		if b, ok := l.buckets[key]; ok && b.lim.TokensAt(now) < 1 {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *Local) Fail(_ context.Context, email, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	limited := false
	for _, key := range l.keys(email, ip) {
		b := l.bucket(key, now)
		if !b.lim.AllowN(now, 1) {
			limited = true
		}
		if b.lim.TokensAt(now) < 1 {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

func (l *Local) Reset(_ context.Context, email, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, "si:"+email)
	return nil
}

func (l *Local) keys(email, ip string) []string {
	keys := []string{"si:" + email}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, "sip:"+ip)
	}
	return keys
}

func (l *Local) bucket(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		burst := l.config.MaxAttempts
		if burst <= 0 {
			burst = 1
		}
		every := l.config.Cooldown / time.Duration(burst)
		if every <= 0 {
			every = time.Second
		}
		b = &bucket{lim: rate.NewLimiter(rate.Every(every), burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b
}

// sweep drops buckets idle for a full cooldown; those are back at burst.
func (l *Local) sweep(now time.Time) {
	l.calls++
	if l.calls%localSweepEvery != 0 {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.seen) > l.config.Cooldown {
			delete(l.buckets, k)
		}
	}
}
