// Package cache keeps per-owner transaction lists in memory between
// requests and sweeps expired entries in the background.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Sweepable is anything the Janitor can purge.
type Sweepable interface {
	CleanExpired() int
}

// Janitor periodically purges expired entries from registered caches.
type Janitor struct {
	mu      sync.Mutex
	targets []Sweepable
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewJanitor(targets ...Sweepable) *Janitor {
	return &Janitor{targets: targets, quit: make(chan struct{})}
}

// Sweep purges every target once and reports the number of evictions.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, t := range j.targets {
		n += t.CleanExpired()
	}
	return n
}

// Run sweeps every interval until Stop. It must be called at most once.
func (j *Janitor) Run(interval time.Duration) {
	j.done = make(chan struct{})
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := j.Sweep(); n > 0 {
					slog.Debug("Cache sweep", "component", "cache", "evicted", n)
				}
			case <-j.quit:
				return
			}
		}
	}()
}

// Stop ends Run and waits for the sweeper to exit. Safe to call twice.
func (j *Janitor) Stop() {
	j.once.Do(func() {
		close(j.quit)
		if j.done != nil {
			<-j.done
		}
	})
}
