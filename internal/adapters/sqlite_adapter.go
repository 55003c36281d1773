package adapters

import (
	"context"

	"flowtrack/internal/core"
	"flowtrack/internal/services"
	"flowtrack/internal/storage"
	"flowtrack/internal/store"
)

var _ store.TransactionStore = (*SQLiteAdapter)(nil)

// SQLiteAdapter serves reads from SQLite and routes writes through the
// TransactionService, so every change also reaches the mirror queue.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.TransactionService
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.TransactionService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

func (a *SQLiteAdapter) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return a.service.CreateTransaction(ctx, tx)
}

func (a *SQLiteAdapter) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return a.service.UpdateTransaction(ctx, tx)
}

func (a *SQLiteAdapter) Delete(ctx context.Context, owner, id string) error {
	return a.service.DeleteTransaction(ctx, owner, id)
}

func (a *SQLiteAdapter) Get(ctx context.Context, owner, id string) (core.Transaction, error) {
	return a.storage.Get(ctx, owner, id)
}

func (a *SQLiteAdapter) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	return a.storage.ListTransactions(ctx, owner)
}

// Ping reports whether the database is reachable.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}
