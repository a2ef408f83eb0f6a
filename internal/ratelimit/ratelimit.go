// Package ratelimit implements token-bucket limiting keyed by an arbitrary
// string (user id, client IP).
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Bucket describes a token bucket: it holds at most Burst tokens and gains
// Rate tokens per second.
type Bucket struct {
	Burst int
	Rate  float64
}

// PerHour builds a bucket refilled by n tokens every hour.
func PerHour(burst, n int) Bucket {
	return Bucket{Burst: burst, Rate: float64(n) / 3600}
}

// UploadURLs guards signed upload URL issuance per user.
var UploadURLs = PerHour(5, 20)

type Result struct {
	Allowed bool
	// Remaining is the whole number of tokens left after this call.
	Remaining int
	// RetryAfter is how long until one token is available when denied.
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// take advances a bucket holding tokens, last updated at last, to now and
// takes one token if it can.
func (b Bucket) take(tokens float64, last, now time.Time) (float64, Result) {
	elapsed := now.Sub(last).Seconds()
	if elapsed > 0 {
		tokens = math.Min(float64(b.Burst), tokens+elapsed*b.Rate)
	}
	if tokens < 1 {
		wait := time.Duration((1 - tokens) / b.Rate * float64(time.Second))
		return tokens, Result{Allowed: false, RetryAfter: wait}
	}
	tokens--
	return tokens, Result{Allowed: true, Remaining: int(tokens)}
}
