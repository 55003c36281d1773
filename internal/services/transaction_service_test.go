package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"flowtrack/internal/core"
	"flowtrack/internal/storage"
	"flowtrack/internal/store"
)

type published struct {
	id      string
	version int64
	delete  bool
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []published
	err    error
	closed bool
}

func (f *fakePublisher) PublishTransactionSync(_ context.Context, id string, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{id, version, false})
	return nil
}

func (f *fakePublisher) PublishTransactionDelete(_ context.Context, id string, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{id, version, true})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "svc.db"), time.UTC)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTx() core.Transaction {
	return core.Transaction{
		Owner:    "alice",
		Amount:   core.Money{Cents: 1500},
		Category: core.Transport,
		Date:     time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
	}
}

func TestTransactionServicePublishesVersions(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewTransactionService(newRepo(t), pub)

	tx, err := svc.CreateTransaction(ctx, sampleTx())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tx.Notes = "train"
	if _, err := svc.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.DeleteTransaction(ctx, "alice", tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []published{{tx.ID, 1, false}, {tx.ID, 2, false}, {tx.ID, 3, true}}
	if len(pub.msgs) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), pub.msgs)
	}
	for i := range want {
		if pub.msgs[i] != want[i] {
			t.Fatalf("message %d = %+v, want %+v", i, pub.msgs[i], want[i])
		}
	}
}

func TestTransactionServicePublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	svc := NewTransactionService(newRepo(t), pub)
	if _, err := svc.CreateTransaction(context.Background(), sampleTx()); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
}

func TestTransactionServiceWithoutPublisher(t *testing.T) {
	svc := NewTransactionService(newRepo(t), nil)
	tx, err := svc.CreateTransaction(context.Background(), sampleTx())
	if err != nil || tx.ID == "" {
		t.Fatalf("unexpected create %+v err=%v", tx, err)
	}
}

func TestTransactionServiceErrors(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewTransactionService(newRepo(t), pub)

	bad := sampleTx()
	bad.Category = "Rent"
	if _, err := svc.CreateTransaction(ctx, bad); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if err := svc.DeleteTransaction(ctx, "alice", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("failed writes must not publish, got %+v", pub.msgs)
	}
}

func TestTransactionServiceClose(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		service := &TransactionService{}
		if err := service.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})
	t.Run("closes publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		service := NewTransactionService(newRepo(t), pub)
		if err := service.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if !pub.closed {
			t.Fatal("publisher not closed")
		}
	})
}
