package sandbox

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/onecloud/onecloud/internal/metrics"
	"github.com/onecloud/onecloud/internal/onecloud"
)

// maxBuckets caps how many callers the throttle tracks at once.
const maxBuckets = 1024

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// throttle keeps one token bucket per caller, keyed by the token's scope
// hash. A bucket idle long enough to refill is indistinguishable from a new
// one, so those are dropped first when the table is full.
type throttle struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	clock   func() time.Time
}

func newThrottle(rps float64, burst int) *throttle {
	if burst <= 0 {
		burst = 1
	}
	return &throttle{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*bucket),
		clock:   time.Now,
	}
}

// allow spends one token from the caller's bucket.
func (t *throttle) allow(token string) bool {
	key := onecloud.TokenScope(token)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	b, ok := t.buckets[key]
	if !ok {
		if len(t.buckets) >= maxBuckets {
			t.evict(now)
		}
		b = &bucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// evict drops refilled buckets, or the least recently seen one when every
// bucket is still draining. Callers hold t.mu.
func (t *throttle) evict(now time.Time) {
	refill := t.refillTime()
	oldestKey := ""
	var oldest time.Time
	for key, b := range t.buckets {
		if now.Sub(b.seen) >= refill {
			delete(t.buckets, key)
			continue
		}
		if oldestKey == "" || b.seen.Before(oldest) {
			oldestKey, oldest = key, b.seen
		}
	}
	if len(t.buckets) >= maxBuckets && oldestKey != "" {
		delete(t.buckets, oldestKey)
	}
}

func (t *throttle) refillTime() time.Duration {
	return time.Duration(t.burst) * t.retryAfter()
}

func (t *throttle) retryAfter() time.Duration {
	if t.limit <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / float64(t.limit))
}

// middleware answers 429 with a plain-text body once a caller's bucket is empty.
// It runs after authenticate, so the bearer prefix is present.
func (t *throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if t.allow(token) {
			next.ServeHTTP(w, r)
			return
		}

		metrics.RecordSandboxThrottled()
		secs := int(t.retryAfter().Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("Too many requests"))
	})
}
