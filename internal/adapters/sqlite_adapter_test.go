package adapters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"flowtrack/internal/core"
	"flowtrack/internal/services"
	"flowtrack/internal/storage"
	"flowtrack/internal/store"
)

func TestSQLiteAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "a.db"), time.UTC)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()
	a := NewSQLiteAdapter(repo, services.NewTransactionService(repo, nil))

	tx, err := a.Create(ctx, core.Transaction{
		Owner: "alice", Amount: core.Money{Cents: 2500}, Category: core.Shopping,
		Date: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	tx.Amount = core.Money{Cents: 3000}
	if _, err := a.Update(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := a.Get(ctx, "alice", tx.ID)
	if err != nil || got.Amount.Cents != 3000 {
		t.Fatalf("unexpected get %+v err=%v", got, err)
	}
	list, err := a.ListTransactions(ctx, "alice")
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %v err=%v", list, err)
	}
	if err := a.Delete(ctx, "alice", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.Get(ctx, "alice", tx.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
