package errclass

import (
	"math/rand"
	"time"
)

// Per-category ceilings on the computed retry delay.
var maxDelays = map[Category]time.Duration{
	CategoryRateLimited:    600 * time.Second,
	CategoryProviderOutage: 1800 * time.Second,
	CategoryNetwork:        300 * time.Second,
	CategoryFileSystem:     300 * time.Second,
}

const defaultMaxDelay = 300 * time.Second

// MaxDelay returns the delay cap for a category.
func MaxDelay(c Category) time.Duration {
	if d, ok := maxDelays[c]; ok {
		return d
	}
	return defaultMaxDelay
}

// RetryDelay computes the wait before the next attempt:
// base * 2^retryCount, jittered by a uniform factor in [0.5, 1.5) and
// capped at the category maximum.
func RetryDelay(c Category, base time.Duration, retryCount int) time.Duration {
	if base <= 0 {
		return 0
	}
	if retryCount < 0 {
		retryCount = 0
	}

	delay := float64(base) * float64(uint64(1)<<uint(retryCount))
	jitter := 0.5 + rand.Float64()
	delay *= jitter

	cap := MaxDelay(c)
	if delay > float64(cap) {
		return cap
	}
	return time.Duration(delay)
}
