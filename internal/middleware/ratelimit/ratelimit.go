// Package ratelimit throttles API clients with a fixed window per key.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds rate limiter configuration
type Config struct {
	// Limit is the number of requests a key may make per Period.
	Limit  int
	Period time.Duration
	// SweepEvery is how often idle windows are dropped.
	SweepEvery time.Duration
}

// PerMinute is the usual configuration: limit requests per minute.
func PerMinute(limit int) Config {
	return Config{Limit: limit, Period: time.Minute, SweepEvery: 5 * time.Minute}
}

type window struct {
	opened time.Time
	count  int
}

// Limiter counts requests per key in windows of Config.Period.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time

	rejected atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

// New starts a limiter and its sweeper. Call Stop to release it.
func New(cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = 5 * cfg.Period
	}

	l := &Limiter{
		windows: make(map[string]*window),
		limit:   cfg.Limit,
		period:  cfg.Period,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweepLoop(cfg.SweepEvery)
	return l
}

// Allow records a request for key. When the key is over its limit it
// returns false and how long until its window reopens.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.opened) >= l.period {
		l.windows[key] = &window{opened: now, count: 1}
		return true, 0
	}
	if w.count >= l.limit {
		l.rejected.Add(1)
		return false, w.opened.Add(l.period).Sub(now)
	}
	w.count++
	return true, 0
}

func (l *Limiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep forgets windows that have already closed.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, w := range l.windows {
		if now.Sub(w.opened) >= l.period {
			delete(l.windows, key)
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Stats is a snapshot for the readiness endpoint.
type Stats struct {
	Rejected int64
	Tracked  int
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	tracked := len(l.windows)
	l.mu.Unlock()
	return Stats{Rejected: l.rejected.Load(), Tracked: tracked}
}

// Middleware rejects requests whose key is over the limit. It sets
// Retry-After in whole seconds before calling onLimit.
func (l *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			ok, wait := l.Allow(k)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			secs := int(math.Ceil(wait.Seconds()))
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"component", "rate_limit",
				"client_ip", k,
				"path", r.URL.Path,
				"retry_after_s", secs)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}
