package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Transaction is a row of the transactions table. OccurredAt is kept as
// stored so that unreadable values surface as undated transactions.
type Transaction struct {
	ID            string
	OwnerID       string
	AmountCents   int64
	Category      string
	Notes         string
	OccurredAt    string
	CreatedAt     string
	UpdatedAt     string
	Version       int64
	DeletedAt     sql.NullString
	SyncStatus    string
	SyncedVersion int64
	SyncError     sql.NullString
}

const transactionColumns = `id, owner_id, amount_cents, category, notes, occurred_at, created_at, updated_at,
       version, deleted_at, sync_status, synced_version, sync_error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.AmountCents,
		&i.Category,
		&i.Notes,
		&i.OccurredAt,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.Version,
		&i.DeletedAt,
		&i.SyncStatus,
		&i.SyncedVersion,
		&i.SyncError,
	)
	return i, err
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (id, owner_id, amount_cents, category, notes, occurred_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	ID          string
	OwnerID     string
	AmountCents int64
	Category    string
	Notes       string
	OccurredAt  string
	Now         string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.ID,
		arg.OwnerID,
		arg.AmountCents,
		arg.Category,
		arg.Notes,
		arg.OccurredAt,
		arg.Now,
		arg.Now,
	)
	return scanTransaction(row)
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`

func (q *Queries) GetTransaction(ctx context.Context, id, ownerID string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id, ownerID))
}

const getTransactionForSync = `-- name: GetTransactionForSync :one
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ?`

// GetTransactionForSync returns the row including soft-deleted ones.
func (q *Queries) GetTransactionForSync(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransactionForSync, id))
}

const listTransactionsByOwner = `-- name: ListTransactionsByOwner :many
SELECT ` + transactionColumns + `
FROM transactions
WHERE owner_id = ? AND deleted_at IS NULL
ORDER BY occurred_at DESC, created_at DESC, id DESC`

func (q *Queries) ListTransactionsByOwner(ctx context.Context, ownerID string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const updateTransaction = `-- name: UpdateTransaction :one
UPDATE transactions
SET amount_cents = ?, category = ?, notes = ?, occurred_at = ?, updated_at = ?,
    version = version + 1, sync_status = 'pending', sync_error = NULL
WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
RETURNING ` + transactionColumns

type UpdateTransactionParams struct {
	ID          string
	OwnerID     string
	AmountCents int64
	Category    string
	Notes       string
	OccurredAt  string
	Now         string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, updateTransaction,
		arg.AmountCents,
		arg.Category,
		arg.Notes,
		arg.OccurredAt,
		arg.Now,
		arg.ID,
		arg.OwnerID,
	)
	return scanTransaction(row)
}

const softDeleteTransaction = `-- name: SoftDeleteTransaction :execrows
UPDATE transactions
SET deleted_at = ?, updated_at = ?, version = version + 1, sync_status = 'pending', sync_error = NULL
WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`

func (q *Queries) SoftDeleteTransaction(ctx context.Context, id, ownerID, now string) (int64, error) {
	result, err := q.db.ExecContext(ctx, softDeleteTransaction, now, now, id, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listPendingSync = `-- name: ListPendingSync :many
SELECT ` + transactionColumns + `
FROM transactions
WHERE sync_status != 'synced'
ORDER BY updated_at ASC
LIMIT ?`

func (q *Queries) ListPendingSync(ctx context.Context, limit int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSync, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const markSynced = `-- name: MarkSynced :execrows
UPDATE transactions
SET sync_status = 'synced', synced_version = ?, sync_error = NULL
WHERE id = ? AND version = ?`

// MarkSynced only succeeds when version is still current, so a write that
// raced with the mirror stays pending.
func (q *Queries) MarkSynced(ctx context.Context, id string, version int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markSynced, version, id, version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markSyncError = `-- name: MarkSyncError :exec
UPDATE transactions
SET sync_status = 'error', sync_error = ?
WHERE id = ?`

func (q *Queries) MarkSyncError(ctx context.Context, id, msg string) error {
	_, err := q.db.ExecContext(ctx, markSyncError, msg, id)
	return err
}

const countBySyncStatus = `-- name: CountBySyncStatus :many
SELECT sync_status, COUNT(*) FROM transactions GROUP BY sync_status`

func (q *Queries) CountBySyncStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, countBySyncStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
