package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"flowtrack/internal/aggregate"
	"flowtrack/internal/core"
	"flowtrack/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "flowtrack.db"), time.UTC)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Create(ctx, core.Transaction{
		Owner:    "alice",
		Amount:   core.Money{Cents: 5000},
		Category: core.Food,
		Notes:    "dinner",
		Date:     time.Date(2024, 3, 6, 19, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", created)
	}

	got, err := repo.Get(ctx, "alice", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 5000 || got.Category != core.Food || !got.Date.Equal(created.Date) {
		t.Fatalf("unexpected transaction %+v", got)
	}
	if _, err := repo.Get(ctx, "bob", created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}

	got.Amount = core.Money{Cents: 7000}
	got.Category = core.Entertainment
	updated, err := repo.Update(ctx, got)
	if err != nil || updated.Amount.Cents != 7000 || updated.Category != core.Entertainment {
		t.Fatalf("unexpected update %+v err=%v", updated, err)
	}

	missing := got
	missing.ID = "does-not-exist"
	if _, err := repo.Update(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := repo.Delete(ctx, "alice", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "alice", created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
	list, err := repo.ListTransactions(ctx, "alice")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v err=%v", list, err)
	}
}

func TestRepositoryRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Create(context.Background(), core.Transaction{Owner: "alice", Category: core.Food})
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestRepositoryKeepsMalformedDatesAsUndated(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, err := repo.db.ExecContext(ctx, `INSERT INTO transactions
		(id, owner_id, amount_cents, category, notes, occurred_at, created_at, updated_at)
		VALUES ('legacy', 'alice', 300, 'Food', '', 'last tuesday', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("insert raw row: %v", err)
	}
	if _, err := repo.Create(ctx, core.Transaction{
		Owner: "alice", Amount: core.Money{Cents: 100}, Category: core.Bills,
		Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := repo.ListTransactions(ctx, "alice")
	if err != nil || len(list) != 2 {
		t.Fatalf("unexpected list %v err=%v", list, err)
	}
	if !list[1].Undated() {
		t.Fatalf("expected malformed row listed last as undated, got %+v", list)
	}
	report := aggregate.Build(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), list)
	if report.Skipped != 1 || len(report.Months) != 1 || report.Months[0].MoneyOut.Cents != 100 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRepositorySyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	tx, err := repo.Create(ctx, core.Transaction{
		Owner: "alice", Amount: core.Money{Cents: 100}, Category: core.Income,
		Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, err := repo.ListPendingSync(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].Version != 1 {
		t.Fatalf("unexpected pending %+v err=%v", pending, err)
	}

	// A write after the mirror read must keep the row pending.
	tx.Notes = "salary"
	if _, err := repo.Update(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok, err := repo.MarkSynced(ctx, tx.ID, 1); err != nil || ok {
		t.Fatalf("stale version must not be marked synced: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.MarkSynced(ctx, tx.ID, 2); err != nil || !ok {
		t.Fatalf("current version should be marked synced: ok=%v err=%v", ok, err)
	}
	if pending, _ := repo.ListPendingSync(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %+v", pending)
	}

	if err := repo.Delete(ctx, "alice", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rec, err := repo.GetForSync(ctx, tx.ID)
	if err != nil || !rec.Deleted || rec.Version != 3 {
		t.Fatalf("unexpected sync record %+v err=%v", rec, err)
	}
	if err := repo.MarkSyncError(ctx, tx.ID, errors.New("quota exceeded")); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}
	stats, err := repo.SyncStats(ctx)
	if err != nil || stats["error"] != 1 {
		t.Fatalf("unexpected stats %v err=%v", stats, err)
	}
	if _, err := repo.GetForSync(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, dirty, err := MigrationVersion(path)
	if err != nil || dirty || v != 2 {
		t.Fatalf("unexpected version %d dirty=%v err=%v", v, dirty, err)
	}
	// Running again is a no-op.
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
