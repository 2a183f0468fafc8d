package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window length.
	Window time.Duration
	// KeyFunc returns the bucket of a request. Defaults to RemoteIP.
	KeyFunc func(*http.Request) string
}

// window counts requests of one key in the current and previous window.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

type limiter struct {
	max    int
	length time.Duration
	key    func(*http.Request) string

	mu      sync.Mutex
	windows map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	key := cfg.KeyFunc
	if key == nil {
		key = RemoteIP
	}
	return &limiter{
		max:     cfg.Max,
		length:  cfg.Window,
		key:     key,
		windows: make(map[string]*window),
	}
}

// take consumes one request for key. The previous window is weighted by how
// much of it still overlaps the sliding window ending at now.
func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.windows[key]
	if !found {
		w = &window{start: now.Truncate(l.length)}
		l.windows[key] = w
	}
	switch elapsed := now.Sub(w.start); {
	case elapsed >= 2*l.length:
		w.prev, w.curr = 0, 0
		w.start = now.Truncate(l.length)
	case elapsed >= l.length:
		w.prev, w.curr = w.curr, 0
		w.start = w.start.Add(l.length)
	}

	overlap := 1 - now.Sub(w.start).Seconds()/l.length.Seconds()
	count := w.prev*math.Max(overlap, 0) + w.curr
	reset = w.start.Add(l.length)
	if count >= float64(l.max) {
		return 0, reset, false
	}
	w.curr++
	return max(l.max-int(math.Ceil(count+1)), 0), reset, true
}

// evict drops keys idle for two windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.start) >= 2*l.length {
			delete(l.windows, key)
		}
	}
}

func (l *limiter) runEviction(ctx context.Context) {
	t := time.NewTicker(2 * l.length)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.evict(now)
		}
	}
}

// RateLimit enforces cfg per key and answers 429 with a JSON error once the
// limit is hit. Stale keys are evicted in the background until ctx is done.
// Every response carries the X-RateLimit-* headers.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.runEviction(ctx)

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := l.take(l.key(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retry := math.Ceil(math.Max(time.Until(reset).Seconds(), 0))
			h.Set("Retry-After", strconv.Itoa(int(retry)))
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		})
	}
}

// RemoteIP keys requests by client address. Run chi's RealIP middleware
// first when the server sits behind a proxy.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSONError writes the {"code","message"} body used across the API.
func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
