package store

import (
	"sort"

	"flowtrack/internal/core"
)

// SortNewestFirst orders transactions by date descending, undated last,
// breaking ties by creation time and then ID.
func SortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.Undated() != b.Undated() {
			return b.Undated()
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
