package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"flowtrack/internal/core"
	"flowtrack/internal/store"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

var _ store.TransactionStore = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
	now     func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations. Stored dates without an offset are read in loc.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		loc:     loc,
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		ID:          tx.ID,
		OwnerID:     tx.Owner,
		AmountCents: tx.Amount.Cents,
		Category:    string(tx.Category),
		Notes:       tx.Notes,
		OccurredAt:  core.FormatDate(tx.Date),
		Now:         r.timestamp(),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"owner", row.OwnerID,
		"category", row.Category,
		"amount_cents", row.AmountCents)

	return r.toDomain(row), nil
}

func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	row, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		ID:          tx.ID,
		OwnerID:     tx.Owner,
		AmountCents: tx.Amount.Cents,
		Category:    string(tx.Category),
		Notes:       tx.Notes,
		OccurredAt:  core.FormatDate(tx.Date),
		Now:         r.timestamp(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	return r.toDomain(row), nil
}

// Delete soft-deletes the transaction so the mirror worker can propagate it.
func (r *SQLiteRepository) Delete(ctx context.Context, owner, id string) error {
	n, err := r.queries.SoftDeleteTransaction(ctx, id, owner, r.timestamp())
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, owner, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return r.toDomain(row), nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = r.toDomain(row)
	}
	store.SortNewestFirst(out)
	return out, nil
}

// SyncRecord is the state the mirror worker needs for one transaction.
type SyncRecord struct {
	Transaction core.Transaction
	Version     int64
	Deleted     bool
}

// GetForSync returns a transaction regardless of its deletion state.
func (r *SQLiteRepository) GetForSync(ctx context.Context, id string) (SyncRecord, error) {
	row, err := r.queries.GetTransactionForSync(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRecord{}, store.ErrNotFound
	}
	if err != nil {
		return SyncRecord{}, fmt.Errorf("get transaction for sync %s: %w", id, err)
	}
	return r.toSyncRecord(row), nil
}

// ListPendingSync returns up to limit records whose latest version has not
// reached the mirror, oldest change first.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]SyncRecord, error) {
	rows, err := r.queries.ListPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	out := make([]SyncRecord, len(rows))
	for i, row := range rows {
		out[i] = r.toSyncRecord(row)
	}
	return out, nil
}

// MarkSynced records that version reached the mirror. It reports false when
// the row changed in the meantime.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) (bool, error) {
	n, err := r.queries.MarkSynced(ctx, id, version)
	if err != nil {
		return false, fmt.Errorf("mark transaction synced: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := r.queries.MarkSyncError(ctx, id, msg); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id, "error", msg)
	return nil
}

// SyncStats counts rows per sync status.
func (r *SQLiteRepository) SyncStats(ctx context.Context) (map[string]int64, error) {
	stats, err := r.queries.CountBySyncStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count sync status: %w", err)
	}
	return stats, nil
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timestampLayout)
}

func (r *SQLiteRepository) toDomain(row Transaction) core.Transaction {
	created, _ := time.Parse(timestampLayout, row.CreatedAt)
	updated, _ := time.Parse(timestampLayout, row.UpdatedAt)
	return core.Transaction{
		ID:        row.ID,
		Owner:     row.OwnerID,
		Amount:    core.Money{Cents: row.AmountCents},
		Category:  core.Category(row.Category),
		Notes:     row.Notes,
		Date:      core.ParseDateLenient(row.OccurredAt, r.loc),
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func (r *SQLiteRepository) toSyncRecord(row Transaction) SyncRecord {
	return SyncRecord{
		Transaction: r.toDomain(row),
		Version:     row.Version,
		Deleted:     row.DeletedAt.Valid,
	}
}
