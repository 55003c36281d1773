package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flowtrack/internal/core"
	"flowtrack/internal/store"
)

// DefaultOwner receives seeded records that name no owner.
const DefaultOwner = "local"

var _ store.TransactionStore = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	items map[string]core.Transaction
	now   func() time.Time
}

func New() *Store {
	return &Store{items: make(map[string]core.Transaction), now: time.Now}
}

// seedRecord is the on-disk shape of a seeded transaction. Dates stay raw so
// that malformed values survive as undated transactions.
type seedRecord struct {
	ID       string     `json:"id"`
	Owner    string     `json:"owner"`
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
	Notes    string     `json:"notes"`
	Date     string     `json:"date"`
}

// NewFromFile seeds a store from a JSON array of transactions. A missing
// file yields an empty store.
func NewFromFile(path string, loc *time.Location) (*Store, error) {
	s := New()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var recs []seedRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	now := s.now()
	for _, r := range recs {
		tx := core.Transaction{
			ID:        strings.TrimSpace(r.ID),
			Owner:     strings.TrimSpace(r.Owner),
			Amount:    r.Amount,
			Category:  core.Category(strings.TrimSpace(r.Category)),
			Notes:     r.Notes,
			Date:      core.ParseDateLenient(r.Date, loc),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		if tx.Owner == "" {
			tx.Owner = DefaultOwner
		}
		s.items[tx.ID] = tx
	}
	return s, nil
}

func (s *Store) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if _, exists := s.items[tx.ID]; exists {
		return core.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}
	now := s.now()
	tx.CreatedAt, tx.UpdatedAt = now, now
	s.items[tx.ID] = tx
	return tx, nil
}

func (s *Store) Update(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[tx.ID]
	if !ok || cur.Owner != tx.Owner {
		return core.Transaction{}, store.ErrNotFound
	}
	cur.Amount = tx.Amount
	cur.Category = tx.Category
	cur.Notes = tx.Notes
	cur.Date = tx.Date
	cur.UpdatedAt = s.now()
	s.items[cur.ID] = cur
	return cur, nil
}

func (s *Store) Delete(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok || cur.Owner != owner {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) Get(_ context.Context, owner, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok || cur.Owner != owner {
		return core.Transaction{}, store.ErrNotFound
	}
	return cur, nil
}

func (s *Store) ListTransactions(_ context.Context, owner string) ([]core.Transaction, error) {
	s.mu.Lock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, tx := range s.items {
		if tx.Owner == owner {
			out = append(out, tx)
		}
	}
	s.mu.Unlock()
	store.SortNewestFirst(out)
	return out, nil
}
