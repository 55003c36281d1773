package cache

import (
	"slices"
	"sync"
	"time"

	"flowtrack/internal/core"
)

// TransactionLists caches each owner's transaction list. Callers always get
// copies, so a cached slice is never shared with a handler.
//
// Every owner has a generation that Invalidate bumps. A reader takes the
// generation before loading from the store and passes it to Set; a list
// loaded before a concurrent write is then discarded instead of cached.
type TransactionLists struct {
	lru *LRU[string, []core.Transaction]

	mu  sync.Mutex
	gen map[string]uint64
}

func NewTransactionLists(maxOwners int, ttl time.Duration) *TransactionLists {
	return &TransactionLists{
		lru: NewLRU[string, []core.Transaction](maxOwners, ttl),
		gen: make(map[string]uint64),
	}
}

// Get returns a copy of the cached list, or the generation to pass to Set
// after loading it from the store.
func (c *TransactionLists) Get(owner string) ([]core.Transaction, uint64, bool) {
	c.mu.Lock()
	gen := c.gen[owner]
	c.mu.Unlock()

	txs, ok := c.lru.Get(owner)
	if !ok {
		return nil, gen, false
	}
	return slices.Clone(txs), gen, true
}

// Set caches txs unless the owner was invalidated since gen was read.
func (c *TransactionLists) Set(owner string, gen uint64, txs []core.Transaction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[owner] != gen {
		return false
	}
	c.lru.Put(owner, slices.Clone(txs))
	return true
}

// Invalidate drops the owner's list after a write.
func (c *TransactionLists) Invalidate(owner string) {
	c.mu.Lock()
	c.gen[owner]++
	c.mu.Unlock()
	c.lru.Remove(owner)
}

func (c *TransactionLists) CleanExpired() int { return c.lru.CleanExpired() }

func (c *TransactionLists) Stats() Stats { return c.lru.Stats() }
