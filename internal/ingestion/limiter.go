package ingestion

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ProviderLimiter bounds traffic per provider rather than per source: several
// sources hosted on one site, or all js-render sources sharing the render
// service, draw from the same bucket.
type ProviderLimiter struct {
	interval    time.Duration
	concurrency int

	mu      sync.Mutex
	buckets map[string]*providerBucket
}

type providerBucket struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

// NewProviderLimiter allows one request per interval per provider and at most
// concurrency in-flight holders per provider. A zero interval disables the
// token bucket.
func NewProviderLimiter(interval time.Duration, concurrency int) *ProviderLimiter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ProviderLimiter{
		interval:    interval,
		concurrency: concurrency,
		buckets:     make(map[string]*providerBucket),
	}
}

func (l *ProviderLimiter) bucket(key string) *providerBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		limit := rate.Inf
		if l.interval > 0 {
			limit = rate.Every(l.interval)
		}
		b = &providerBucket{
			limiter: rate.NewLimiter(limit, 1),
			slots:   make(chan struct{}, l.concurrency),
		}
		l.buckets[key] = b
	}
	return b
}

// Acquire blocks until key has a free slot and a token. The returned release
// must be called once the work is done.
func (l *ProviderLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	b := l.bucket(key)

	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := b.limiter.Wait(ctx); err != nil {
		<-b.slots
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(func() { <-b.slots }) }, nil
}
