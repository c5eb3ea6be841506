package gateway

import (
	"golang.org/x/time/rate"
)

// ClientRateLimiter bounds how fast one client may issue RPC calls. Producers
// pressing a button repeatedly are fine; a runaway script is not.
type ClientRateLimiter struct {
	limiter *rate.Limiter
}

// NewClientRateLimiter creates a limiter allowing 20 calls per second with a
// burst of 40.
func NewClientRateLimiter() *ClientRateLimiter {
	return NewClientRateLimiterWithLimits(20, 40)
}

// NewClientRateLimiterWithLimits creates a rate limiter with custom limits
func NewClientRateLimiterWithLimits(perSecond float64, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Allow consumes one token if available.
func (r *ClientRateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// UpdateLimits updates the rate limits
func (r *ClientRateLimiter) UpdateLimits(perSecond float64, burst int) {
	r.limiter.SetLimit(rate.Limit(perSecond))
	r.limiter.SetBurst(burst)
}
