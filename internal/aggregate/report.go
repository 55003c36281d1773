package aggregate

import (
	"maps"
	"time"

	"flowtrack/internal/core"
)

// Report bundles every series the dashboard renders for one moment.
type Report struct {
	AsOf      time.Time     `json:"asOf"`
	WeekStart time.Time     `json:"weekStart"`
	Week      []WeekBucket  `json:"week"`
	WeekTotal core.Money    `json:"weekTotal"`
	Months    []MonthBucket `json:"months"`
	// Current is the latest month with activity. With no dated activity it
	// is a zero bucket for the month of AsOf.
	Current MonthBucket `json:"current"`
	// Skipped counts undated transactions left out of every series.
	Skipped int `json:"skipped"`
}

// Undated counts transactions without a usable date.
func Undated(txs []core.Transaction) int {
	n := 0
	for _, tx := range txs {
		if tx.Undated() {
			n++
		}
	}
	return n
}

// Build computes the weekly and monthly series for now.
func Build(now time.Time, txs []core.Transaction) Report {
	week := Weekly(now, txs)
	months := Monthly(txs)
	r := Report{
		AsOf:      now,
		WeekStart: WeekStart(now),
		Week:      week,
		WeekTotal: WeekTotal(week),
		Months:    months,
		Skipped:   Undated(txs),
	}
	if len(months) > 0 {
		r.Current = months[len(months)-1]
		r.Current.ByCategory = maps.Clone(r.Current.ByCategory)
	} else {
		r.Current = MonthBucket{Month: MonthKeyOf(now), ByCategory: map[core.Category]core.Money{}}
	}
	return r
}
