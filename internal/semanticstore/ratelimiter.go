package semanticstore

import (
	"context"
	"sync"
	"time"
)

// tokenBucket is a small stdlib rate limiter bounding outbound requests per
// second to an embedding provider. The teacher's Ollama client had no RPM
// limiting at all; hosted embedding APIs commonly do, so this is new, built
// on the same context-cancellable wait pattern as retry.go's backoff rather
// than pulling in a dedicated rate-limiting library — no library in the
// example corpus covers this concern (see DESIGN.md).
type tokenBucket struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      float64
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(ratePerSecond float64) *tokenBucket {
	if ratePerSecond <= 0 {
		return nil
	}
	return &tokenBucket{
		rate:       ratePerSecond,
		burst:      ratePerSecond,
		tokens:     ratePerSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (b *tokenBucket) Wait(ctx context.Context) error {
	if b == nil {
		return nil
	}
	for {
		b.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(b.lastRefill).Seconds()
		b.tokens += elapsed * b.rate
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
		b.lastRefill = now

		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}

		deficit := 1 - b.tokens
		wait := time.Duration(deficit / b.rate * float64(time.Second))
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
