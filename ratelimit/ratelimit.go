package ratelimit

import (
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// PlaylistPageConcurrency bounds the playlist item pages fetched at once.
	PlaylistPageConcurrency = 4

	defaultRetryAfter = 1 * time.Second
	maxRetryAfter     = 30 * time.Second
)

// NewLimiter returns a limiter allowing rps requests per second. A
// non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	return rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}

// RetryAfter is how long to wait before retrying a rate-limited request. It
// honours the Retry-After header (in seconds), capped at 30s, and adds up to
// a quarter second of jitter so that concurrent callers spread out.
func RetryAfter(header http.Header) time.Duration {
	wait := defaultRetryAfter
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); nil == err && secs >= 0 && !math.IsInf(secs, 0) {
			wait = time.Duration(secs * float64(time.Second))
		}
	}
	wait = min(wait, maxRetryAfter)

	return wait + time.Duration(rand.N(250))*time.Millisecond //nolint:gosec
}
