// Kunhua Huang 2026

package ratelimiter

import (
	"context"
	"sync"
)

// KeyedLimiter keeps one limiter per key, typically a connection ID, so a
// noisy peer cannot starve the others.
type KeyedLimiter struct {
	newLimiter Factory

	limiters map[string]RateLimiter
	mu       sync.Mutex
}

func NewKeyedLimiter(newLimiter Factory) *KeyedLimiter {
	return &KeyedLimiter{
		newLimiter: newLimiter,
		limiters:   make(map[string]RateLimiter),
	}
}

func (kl *KeyedLimiter) Allow(ctx context.Context, key string) bool {
	return kl.get(key).Allow(ctx)
}

func (kl *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return kl.get(key).Wait(ctx)
}

// Forget drops the limiter for key. Called when the connection goes away.
func (kl *KeyedLimiter) Forget(key string) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	delete(kl.limiters, key)
}

func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	return len(kl.limiters)
}

func (kl *KeyedLimiter) get(key string) RateLimiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	l, ok := kl.limiters[key]
	if !ok {
		l = kl.newLimiter()
		kl.limiters[key] = l
	}
	return l
}
