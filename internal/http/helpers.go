package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"flowtrack/internal/auth"
	"flowtrack/internal/core"
)

// transactionResponse is the JSON view of a transaction. The owner is
// implied by the caller's token and never echoed.
type transactionResponse struct {
	ID        string        `json:"id"`
	Amount    core.Money    `json:"amount"`
	Category  core.Category `json:"category"`
	Notes     string        `json:"notes"`
	Date      *time.Time    `json:"date"`
	CreatedAt *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
}

func toResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		Amount:    tx.Amount,
		Category:  tx.Category,
		Notes:     tx.Notes,
		Date:      timePtr(tx.Date),
		CreatedAt: timePtr(tx.CreatedAt),
		UpdatedAt: timePtr(tx.UpdatedAt),
	}
}

func toResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toResponse(tx)
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// writeAuthError answers requests rejected by the auth middleware.
func writeAuthError(w http.ResponseWriter, _ *http.Request, err error) {
	msg := "invalid token"
	if errors.Is(err, auth.ErrMissingToken) {
		msg = "missing bearer token"
	}
	UnauthorizedError(msg).Write(w)
}
