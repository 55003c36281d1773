// Package http serves the transaction API and the chart series computed by
// the aggregation engine.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"flowtrack/internal/auth"
	"flowtrack/internal/cache"
	"flowtrack/internal/core"
	"flowtrack/internal/log"
	"flowtrack/internal/middleware/ratelimit"
	"flowtrack/internal/middleware/security"
	"flowtrack/internal/middleware/trace"
	"flowtrack/internal/store"
)

const (
	listCacheSize = 500
	listCacheTTL  = 5 * time.Minute
	storeTimeout  = 7 * time.Second
)

// Options wires the server's collaborators.
type Options struct {
	Store store.TransactionStore
	// Verifier authenticates API calls. Nil disables authentication and
	// every request acts as auth.LocalOwner.
	Verifier *auth.Verifier
	// Location is used for date-only input and for "now".
	Location           *time.Location
	RateLimitPerMinute int
	// Ready reports whether backing services are reachable.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
	// Now overrides the clock, mainly in tests.
	Now func() time.Time
}

type Server struct {
	http.Server
	store    store.TransactionStore
	verifier *auth.Verifier
	loc      *time.Location
	now      func() time.Time
	ready    func(ctx context.Context) error
	logger   *log.Logger
	validate *validator.Validate

	lists    *cache.TransactionLists
	janitor  *cache.Janitor
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Tracer

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		store:    opts.Store,
		verifier: opts.Verifier,
		loc:      opts.Location,
		now:      opts.Now,
		ready:    opts.Ready,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		validate: newValidator(),
		lists:    cache.NewTransactionLists(listCacheSize, listCacheTTL),
		limiter:  ratelimit.New(ratelimit.PerMinute(opts.RateLimitPerMinute)),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.New(s.detector.ExtractClientIP)
	s.janitor = cache.NewJanitor(s.lists)
	s.janitor.Run(10 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.Logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(base *log.Logger) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/transactions", s.handleTransactions)
	api.HandleFunc("/api/transactions/{id}", s.handleTransaction)
	api.HandleFunc("/api/charts/weekly", s.handleWeekly)
	api.HandleFunc("/api/charts/monthly", s.handleMonthly)
	api.HandleFunc("/api/summary", s.handleSummary)
	api.HandleFunc("/api/categories", s.handleCategories)
	api.HandleFunc("/api/", s.handleNotFound)

	root := http.NewServeMux()
	root.HandleFunc("/healthz", s.handleHealth)
	root.HandleFunc("/readyz", s.handleReady)
	root.Handle("/api/", auth.Middleware(s.verifier, writeAuthError)(api))
	root.HandleFunc("/", s.handleNotFound)

	// trace -> security -> rate limit -> auth (per route above)
	return chain(root,
		s.tracer.Middleware,
		log.Middleware(base),
		log.RequestIDMiddleware(func(r *http.Request) string { return trace.RequestID(r.Context()) }),
		security.DefaultHeaders().Middleware,
		s.detector.Middleware,
		s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError("rate limit exceeded, retry later").Write(w)
		}),
	)
}

// chain wraps h so that the first middleware is the outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation errors
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// asOf returns the moment charts are computed for: the `date` query
// parameter when present, otherwise the current time in the server zone.
func (s *Server) asOf(r *http.Request) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return s.now().In(s.loc), nil
	}
	return core.ParseDate(v, s.loc)
}

// transactions returns the owner's list, served from cache when fresh.
func (s *Server) transactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	txs, gen, ok := s.lists.Get(owner)
	if ok {
		slog.DebugContext(ctx, "Transaction list cache hit", "owner", owner, "count", len(txs))
		return txs, nil
	}
	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	txs, err := s.store.ListTransactions(cctx, owner)
	if err != nil {
		return nil, err
	}
	if s.lists.Set(owner, gen, txs) {
		slog.DebugContext(ctx, "Transaction list cached", "owner", owner, "count", len(txs))
	}
	return txs, nil
}
