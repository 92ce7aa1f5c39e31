package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures a sliding window limiter.
type RateLimitConfig struct {
	// Max requests per Window and key.
	Max    int
	Window time.Duration
	// KeyFunc extracts the limiter key. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Message is returned in the 429 body.
	Message string
}

// window holds the counters of the current and previous fixed windows.
type window struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

type slidingWindow struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
}

func newSlidingWindow(cfg RateLimitConfig) *slidingWindow {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Message == "" {
		cfg.Message = "rate limit exceeded"
	}
	return &slidingWindow{cfg: cfg, windows: make(map[string]*window)}
}

// take counts one request for key. The previous window is weighted by how
// much of it still overlaps the sliding window.
func (s *slidingWindow) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, found := s.windows[key]
	if !found {
		w = &window{currStart: now}
		s.windows[key] = w
	}

	size := s.cfg.Window
	if now.Sub(w.currStart) >= size {
		w.prevCount, w.prevStart = w.currCount, w.currStart
		w.currCount, w.currStart = 0, now.Truncate(size)
		if now.Sub(w.prevStart) >= 2*size {
			w.prevCount = 0
		}
	}

	overlap := math.Max(0, 1-now.Sub(w.currStart).Seconds()/size.Seconds())
	count := w.prevCount*overlap + w.currCount
	resetAt = w.currStart.Add(size)
	if count >= float64(s.cfg.Max) {
		return 0, resetAt, false
	}

	w.currCount++
	remaining = max(0, int(float64(s.cfg.Max)-count-1))
	return remaining, resetAt, true
}

// evict drops keys idle for two full windows.
func (s *slidingWindow) evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, w := range s.windows {
		if now.Sub(w.currStart) >= 2*s.cfg.Window {
			delete(s.windows, key)
		}
	}
}

func (s *slidingWindow) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * s.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.evict(now)
		}
	}
}

// RateLimit limits requests per key with a sliding window. Rejected requests
// get 429 with Retry-After; every response carries X-RateLimit-* headers.
// Idle keys are never evicted; see RateLimitWithCleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newSlidingWindow(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a background eviction loop that runs
// until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	s := newSlidingWindow(cfg)
	go s.evictLoop(ctx)
	return s.middleware
}

func (s *slidingWindow) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, resetAt, ok := s.take(s.cfg.KeyFunc(r), time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(s.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !ok {
			retry := max(0, time.Until(resetAt))
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			WriteError(w, http.StatusTooManyRequests, "rate_limited", s.cfg.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
