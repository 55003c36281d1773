package http

import (
	"net/http"
	"time"

	"flowtrack/internal/aggregate"
	"flowtrack/internal/core"
	"flowtrack/internal/log"
)

// chartInput loads what every chart endpoint needs: the owner's
// transactions and the moment to compute for. It writes the error response
// itself and reports false when the handler should stop.
func (s *Server) chartInput(w http.ResponseWriter, r *http.Request) (time.Time, []core.Transaction, bool) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return time.Time{}, nil, false
	}
	owner, ok := s.owner(w, r)
	if !ok {
		return time.Time{}, nil, false
	}
	now, err := s.asOf(r)
	if err != nil {
		BadRequestError("invalid date parameter, expected YYYY-MM-DD").Write(w)
		return time.Time{}, nil, false
	}
	txs, err := s.transactions(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, log.OpAggregate, err)
		return time.Time{}, nil, false
	}
	log.FromContext(r.Context()).UndatedSkipped(r.Context(), owner, aggregate.Undated(txs))
	return now, txs, true
}

// handleWeekly returns the Monday-first 7-day series for the week of `date`.
func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	now, txs, ok := s.chartInput(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(aggregate.Weekly(now, txs)).Write(w)
}

// handleMonthly returns up to six month buckets, oldest first.
func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	_, txs, ok := s.chartInput(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(aggregate.Monthly(txs)).Write(w)
}

// handleSummary returns the full report used by the dashboard.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	now, txs, ok := s.chartInput(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(aggregate.Build(now, txs)).Write(w)
}
