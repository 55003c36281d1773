package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"flowtrack/internal/core"
	"flowtrack/internal/log"
	"flowtrack/internal/store"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowedError("GET, HEAD").Write(w)
		return
	}
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowedError("GET, HEAD").Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	case s.ready != nil:
		if err := s.ready(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	default:
		checks["store"] = "ok"
	}

	reqStats := s.tracer.Stats()
	checks["cache"] = s.lists.Stats()
	checks["requests"] = map[string]any{
		"total":            reqStats.Requests,
		"server_errors":    reqStats.ServerErrors,
		"avg_response_us":  reqStats.MeanLatencyMicros,
		"rate_limited":     s.limiter.Stats().Rejected,
		"suspicious_flags": s.detector.Metrics().SuspiciousRequests,
	}

	if httpStatus != http.StatusOK {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).
			WarnContext(r.Context(), "Readiness check failed", "checks", checks)
	}
	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

type categoryInfo struct {
	Name   core.Category `json:"name"`
	Income bool          `json:"income"`
}

// handleCategories lists the fixed category enumeration in display order.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}
	cats := core.Categories()
	out := make([]categoryInfo, len(cats))
	for i, c := range cats {
		out[i] = categoryInfo{Name: c, Income: c.IsIncome()}
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("not found").Write(w)
}

// writeError maps errors from request parsing and the store onto responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		ErrorResponse(reqErr.status, reqErr.message).Write(w)
	case errors.Is(err, store.ErrNotFound):
		NotFoundError("transaction not found").Write(w)
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrNotesTooLong):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).Failed(r.Context(), "Transaction store error", err, log.ComponentStorage, op)
		InternalServerError("internal error").Write(w)
	}
}
