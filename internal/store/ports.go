// Package store declares the persistence ports the HTTP layer and the
// mirror worker depend on. Adapters live in subpackages and in
// internal/adapters.
package store

import (
	"context"
	"errors"

	"flowtrack/internal/core"
)

// ErrNotFound is returned when a transaction does not exist for the owner.
var ErrNotFound = errors.New("transaction not found")

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		// Create stores a new transaction. Adapters assign ID and timestamps
		// when they are empty.
		Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// Update replaces amount, category, notes and date of an existing
		// transaction.
		Update(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, owner, id string) error
	}

	TransactionReader interface {
		Get(ctx context.Context, owner, id string) (core.Transaction, error)
		// ListTransactions returns every transaction of owner, newest first.
		ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error)
	}

	TransactionStore interface {
		TransactionReader
		TransactionWriter
	}
)
