package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"playground/internal/engine/playground"
	"playground/internal/pkg/errors"
)

// SessionLookup resolves a request to an existing session without creating one.
type SessionLookup interface {
	Lookup(r *http.Request) (*playground.Session, bool)
}

type RateLimiter struct {
	store    *sync.Map // map[string]*Bucket
	limit    int
	sessions SessionLookup
	now      func() time.Time
}

type Bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
	lastAccess time.Time
}

// NewRateLimiter allows limit actions per minute for each caller. Callers
// holding a live session get their own bucket; everyone else shares one per
// client address. sessions may be nil.
func NewRateLimiter(limit int, sessions SessionLookup) *RateLimiter {
	return &RateLimiter{
		store:    &sync.Map{},
		limit:    limit,
		sessions: sessions,
		now:      time.Now,
	}
}

// Run drops buckets idle for ten minutes until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(10 * time.Minute)
		}
	}
}

func (rl *RateLimiter) cleanup(idle time.Duration) {
	now := rl.now()
	rl.store.Range(func(key, value interface{}) bool {
		bucket := value.(*Bucket)
		bucket.mu.Lock()
		if now.Sub(bucket.lastAccess) > idle {
			rl.store.Delete(key)
		}
		bucket.mu.Unlock()
		return true
	})
}

func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &Bucket{
		tokens:     rl.limit,
		lastRefill: now,
		lastAccess: now,
	})

	bucket := val.(*Bucket)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now

	// Refill at limit per minute, carrying over the time of partial tokens.
	perToken := time.Minute / time.Duration(rl.limit)
	if refill := int(now.Sub(bucket.lastRefill) / perToken); refill > 0 {
		bucket.tokens += refill
		bucket.lastRefill = bucket.lastRefill.Add(time.Duration(refill) * perToken)
		if bucket.tokens >= rl.limit {
			bucket.tokens = rl.limit
			bucket.lastRefill = now
		}
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// Handle runs before sessions are started, so a request that is refused
// never creates one, and dropping the cookie does not buy a fresh bucket.
func (rl *RateLimiter) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r)
		if rl.sessions != nil {
			if sess, ok := rl.sessions.Lookup(r); ok {
				key = "session:" + sess.ID
			}
		}

		if !rl.Allow(key) {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute/time.Second)/rl.limit+1))
			errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
			return
		}

		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
