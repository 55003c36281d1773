package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"flowtrack/internal/amqp"
	"flowtrack/internal/core"
	"flowtrack/internal/storage"
	"flowtrack/internal/store"
)

// Source is the system of record the worker mirrors from.
type Source interface {
	GetForSync(ctx context.Context, id string) (storage.SyncRecord, error)
	ListPendingSync(ctx context.Context, limit int) ([]storage.SyncRecord, error)
	MarkSynced(ctx context.Context, id string, version int64) (bool, error)
	MarkSyncError(ctx context.Context, id string, cause error) error
}

// Mirror is the secondary copy kept in sync, a Google Sheet in production.
type Mirror interface {
	Mirror(ctx context.Context, tx core.Transaction) error
	Remove(ctx context.Context, id string) error
}

// SyncWorker propagates transactions from SQLite to the mirror.
type SyncWorker struct {
	source    Source
	mirror    Mirror
	batchSize int
}

func NewSyncWorker(source Source, mirror Mirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{source: source, mirror: mirror, batchSize: batchSize}
}

// HandleMessage processes one change notification. The row's current state
// decides what happens, so out-of-order messages converge.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version,
		"action", msg.Action)

	rec, err := w.source.GetForSync(ctx, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction no longer exists, dropping message", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if rec.Version < msg.Version {
		slog.WarnContext(ctx, "Message newer than stored row, mirroring stored state",
			"id", msg.ID, "message_version", msg.Version, "stored_version", rec.Version)
	}
	return w.syncRecord(ctx, rec)
}

// ProcessPending mirrors rows whose latest version has not been synced. It
// recovers changes whose AMQP message was lost or failed.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	pending, err := w.source.ListPendingSync(ctx, w.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))
	for _, rec := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.syncRecord(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", rec.Transaction.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	slog.InfoContext(ctx, "Pending sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}

func (w *SyncWorker) syncRecord(ctx context.Context, rec storage.SyncRecord) error {
	id := rec.Transaction.ID
	var err error
	if rec.Deleted {
		err = w.mirror.Remove(ctx, id)
	} else {
		err = w.mirror.Mirror(ctx, rec.Transaction)
	}
	if err != nil {
		if markErr := w.source.MarkSyncError(ctx, id, err); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("mirror transaction %s: %w", id, err)
	}

	ok, err := w.source.MarkSynced(ctx, id, rec.Version)
	if err != nil {
		// The mirror write worked; the sweep will repeat it idempotently.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
		return nil
	}
	if !ok {
		slog.InfoContext(ctx, "Transaction changed during sync, left pending", "id", id, "version", rec.Version)
		return nil
	}
	slog.InfoContext(ctx, "Successfully synced transaction",
		"id", id,
		"version", rec.Version,
		"deleted", rec.Deleted,
		"amount_cents", rec.Transaction.Amount.Cents)
	return nil
}
