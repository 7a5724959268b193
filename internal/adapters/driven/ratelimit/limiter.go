// Package ratelimit provides a per-API token bucket RateLimiter.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// Ensure Limiter implements the interface.
var _ driven.RateLimiter = (*Limiter)(nil)

// Limiter keeps one token bucket per API id. Buckets refill continuously at
// perHour/3600 tokens per second up to burst.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// New creates a limiter allowing perHour calls per API per hour. A perHour
// of zero or less disables limiting. A burst of zero or less means perHour.
func New(perHour, burst int) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Inf,
		now:     time.Now,
	}
	if perHour > 0 {
		l.limit = rate.Every(time.Hour / time.Duration(perHour))
		l.burst = burst
		if l.burst <= 0 {
			l.burst = perHour
		}
	}
	return l
}

// Allow reports whether a call for apiID may proceed and consumes a token.
func (l *Limiter) Allow(apiID string) bool {
	if l.limit == rate.Inf {
		return true
	}
	return l.bucket(apiID).AllowN(l.now(), 1)
}

// Tokens returns the tokens currently available for apiID.
func (l *Limiter) Tokens(apiID string) float64 {
	if l.limit == rate.Inf {
		return float64(rate.Inf)
	}
	return l.bucket(apiID).TokensAt(l.now())
}

// Reset drops every bucket, restoring full capacity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*rate.Limiter)
}

func (l *Limiter) bucket(apiID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[apiID]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[apiID] = b
	}
	return b
}
