package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"flowtrack/internal/core"
)

// Request bodies are checked twice: struct tags catch shape problems, then
// core validation enforces domain rules.

const maxBodyBytes = 64 << 10

// transactionRequest is the body of POST and PUT /api/transactions.
type transactionRequest struct {
	Amount   *core.Money `json:"amount" validate:"required"`
	Category string      `json:"category" validate:"required,max=32"`
	Notes    string      `json:"notes" validate:"max=500"`
	Date     string      `json:"date" validate:"required,max=40"`
}

// requestError carries the status a malformed request is answered with.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func unprocessable(format string, args ...any) error {
	return &requestError{status: http.StatusUnprocessableEntity, message: fmt.Sprintf(format, args...)}
}

// decodeTransaction reads and validates a transaction body.
func (s *Server) decodeTransaction(w http.ResponseWriter, r *http.Request) (transactionRequest, error) {
	var req transactionRequest

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return req, &requestError{status: http.StatusUnsupportedMediaType, message: "content type must be application/json"}
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, core.ErrInvalidAmount):
			return req, unprocessable("amount must be a non-negative decimal")
		case errors.As(err, &maxErr):
			return req, &requestError{status: http.StatusRequestEntityTooLarge, message: "request body too large"}
		case errors.Is(err, io.EOF):
			return req, badRequest("request body is empty")
		default:
			return req, badRequest("invalid JSON body: %v", err)
		}
	}
	if dec.More() {
		return req, badRequest("request body must contain a single JSON object")
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return req, unprocessable("%s", describeValidation(verrs))
		}
		return req, badRequest("invalid request: %v", err)
	}
	return req, nil
}

func describeValidation(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// toTransaction converts the request into a domain transaction for owner.
func (req transactionRequest) toTransaction(owner string, loc *time.Location) (core.Transaction, error) {
	cat, err := core.ParseCategory(strings.TrimSpace(req.Category))
	if err != nil {
		return core.Transaction{}, unprocessable("unknown category %q", req.Category)
	}
	date, err := core.ParseDate(req.Date, loc)
	if err != nil {
		return core.Transaction{}, unprocessable("invalid date %q", req.Date)
	}
	tx := core.Transaction{
		Owner:    owner,
		Amount:   *req.Amount,
		Category: cat,
		Notes:    sanitizeInput(req.Notes),
		Date:     date,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, unprocessable("%v", err)
	}
	return tx, nil
}
