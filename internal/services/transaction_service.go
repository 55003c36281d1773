package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"flowtrack/internal/core"
	"flowtrack/internal/storage"
	"flowtrack/internal/store"
)

// Repository is the local system of record.
type Repository interface {
	store.TransactionStore
	GetForSync(ctx context.Context, id string) (storage.SyncRecord, error)
	Close() error
}

// Publisher announces changes to the mirror worker.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, id string, version int64) error
	PublishTransactionDelete(ctx context.Context, id string, version int64) error
	Close() error
}

// TransactionService orchestrates transaction writes across SQLite and AMQP.
// The local write is authoritative; publishing is best effort and anything
// that fails to publish is picked up by the worker's pending sweep.
type TransactionService struct {
	storage   Repository
	publisher Publisher
}

// NewTransactionService wires storage and an optional publisher (nil disables
// change events).
func NewTransactionService(storage Repository, publisher Publisher) *TransactionService {
	return &TransactionService{storage: storage, publisher: publisher}
}

func (s *TransactionService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.storage.Create(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.announce(ctx, saved.ID, false)
	return saved, nil
}

func (s *TransactionService) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.storage.Update(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.announce(ctx, saved.ID, false)
	return saved, nil
}

// DeleteTransaction soft deletes locally, then announces the removal.
func (s *TransactionService) DeleteTransaction(ctx context.Context, owner, id string) error {
	if err := s.storage.Delete(ctx, owner, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.announce(ctx, id, true)
	return nil
}

func (s *TransactionService) announce(ctx context.Context, id string, deleted bool) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping sync message", "id", id)
		return
	}
	rec, err := s.storage.GetForSync(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read transaction version", "id", id, "error", err)
		return
	}
	if deleted {
		err = s.publisher.PublishTransactionDelete(ctx, id, rec.Version)
	} else {
		err = s.publisher.PublishTransactionSync(ctx, id, rec.Version)
	}
	if err != nil {
		// Don't fail the request, the row stays pending for the sweep.
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "version", rec.Version, "delete", deleted, "error", err)
	}
}

// Close closes both storage and AMQP connections
func (s *TransactionService) Close() error {
	var errs []error
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
