// Package trace assigns request IDs and keeps request counters for the
// readiness report.
package trace

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Header carries the request ID in and out of the service.
const Header = "X-Request-ID"

const maxUpstreamIDLen = 64

type ctxKey struct{}

// Stats is a snapshot of the tracer counters.
type Stats struct {
	Requests     int64 `json:"requests"`
	ServerErrors int64 `json:"server_errors"`
	// MeanLatencyMicros is the running mean over all requests.
	MeanLatencyMicros int64 `json:"mean_latency_us"`
}

// Tracer is the outermost middleware: it tags every request with an ID and
// logs its outcome.
type Tracer struct {
	clientIP func(*http.Request) string

	requests     atomic.Int64
	serverErrors atomic.Int64
	meanMicros   atomic.Int64
}

// New returns a Tracer. clientIP may be nil.
func New(clientIP func(*http.Request) string) *Tracer {
	return &Tracer{clientIP: clientIP}
}

// NewRequestID returns "req_" followed by 16 hex characters.
func NewRequestID() string {
	id := uuid.New()
	return "req_" + hex.EncodeToString(id[:8])
}

// RequestID returns the ID assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (t *Tracer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()

		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" || len(id) > maxUpstreamIDLen {
			id = NewRequestID()
		}
		w.Header().Set(Header, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		elapsed := time.Since(began)
		t.record(sw.status, elapsed)

		level := slog.LevelInfo
		switch {
		case sw.status >= 500:
			level = slog.LevelError
		case sw.status >= 400:
			level = slog.LevelWarn
		}
		attrs := []any{
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", elapsed,
		}
		if t.clientIP != nil {
			attrs = append(attrs, "client_ip", t.clientIP(r))
		}
		slog.Log(ctx, level, "Request handled", attrs...)
	})
}

func (t *Tracer) record(status int, elapsed time.Duration) {
	n := t.requests.Add(1)
	if status >= 500 {
		t.serverErrors.Add(1)
	}
	// Concurrent updates may drop a sample, which is fine for a report.
	prev := t.meanMicros.Load()
	t.meanMicros.Store(prev + (elapsed.Microseconds()-prev)/n)
}

// Stats returns the current counters.
func (t *Tracer) Stats() Stats {
	return Stats{
		Requests:          t.requests.Load(),
		ServerErrors:      t.serverErrors.Load(),
		MeanLatencyMicros: t.meanMicros.Load(),
	}
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
