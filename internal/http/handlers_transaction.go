package http

import (
	"context"
	"net/http"

	"flowtrack/internal/auth"
	"flowtrack/internal/core"
	"flowtrack/internal/log"
)

// handleTransactions serves /api/transactions.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleTransaction serves /api/transactions/{id}.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetTransaction(w, r)
	case http.MethodPut:
		s.handleUpdateTransaction(w, r)
	case http.MethodDelete:
		s.handleDeleteTransaction(w, r)
	default:
		MethodNotAllowedError("GET, PUT, DELETE").Write(w)
	}
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		UnauthorizedError("missing owner").Write(w)
	}
	return owner, ok
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	txs, err := s.transactions(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(toResponses(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	tx, err := s.store.Get(ctx, owner, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(toResponse(tx)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	tx, err := s.parseTransaction(w, r, owner)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	created, err := s.store.Create(ctx, tx)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.lists.Invalidate(owner)
	log.FromContext(r.Context()).TransactionWritten(r.Context(), log.OpCreate, created)

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+created.ID).
		JSON(toResponse(created)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	tx, err := s.parseTransaction(w, r, owner)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	tx.ID = r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	updated, err := s.store.Update(ctx, tx)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.lists.Invalidate(owner)
	log.FromContext(r.Context()).TransactionWritten(r.Context(), log.OpUpdate, updated)

	NewResponse().JSON(toResponse(updated)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, owner, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.lists.Invalidate(owner)
	log.FromContext(r.Context()).TransactionWritten(r.Context(), log.OpDelete, core.Transaction{ID: id, Owner: owner})

	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) parseTransaction(w http.ResponseWriter, r *http.Request, owner string) (core.Transaction, error) {
	req, err := s.decodeTransaction(w, r)
	if err != nil {
		return core.Transaction{}, err
	}
	return req.toTransaction(owner, s.loc)
}
