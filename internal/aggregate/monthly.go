package aggregate

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"flowtrack/internal/core"
)

// MonthWindow is the maximum number of months Monthly returns.
const MonthWindow = 6

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthKeyOf returns the month of t, read in t's location.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses the "YYYY-MM" form produced by String.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthKeyOf(t), nil
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

func (k MonthKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MonthKey) UnmarshalText(b []byte) error {
	parsed, err := ParseMonthKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MonthBucket is the cashflow of one calendar month. ByCategory holds only
// debit categories that saw activity; use Amount to read it.
type MonthBucket struct {
	Month       MonthKey
	MoneyIn     core.Money
	MoneyOut    core.Money
	NetCashflow core.Money
	ByCategory  map[core.Category]core.Money
}

// Amount returns the debit total for cat, zero when the month has none.
func (b MonthBucket) Amount(cat core.Category) core.Money {
	return b.ByCategory[cat]
}

// Breakdown lists the per-category debits in display order. Categories
// outside the known set follow, sorted by name.
func (b MonthBucket) Breakdown() []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(b.ByCategory))
	for cat, amt := range b.ByCategory {
		out = append(out, core.CategoryAmount{Category: cat, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Category.Rank(), out[j].Category.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// MarshalJSON writes the flat chart record:
// {"month":"2024-03","moneyIn":..,"moneyOut":..,"netCashflow":..,"Bills":..}.
func (b MonthBucket) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4+len(b.ByCategory))
	for cat, amt := range b.ByCategory {
		m[string(cat)] = amt
	}
	m["month"] = b.Month.String()
	m["moneyIn"] = b.MoneyIn
	m["moneyOut"] = b.MoneyOut
	m["netCashflow"] = b.NetCashflow
	return json.Marshal(m)
}

// Monthly groups transactions by calendar month and returns the most recent
// MonthWindow months that have activity, oldest first. Income is credited to
// MoneyIn; any other category, known or not, is debited to MoneyOut and to
// its own ByCategory slot. Undated transactions are ignored.
func Monthly(txs []core.Transaction) []MonthBucket {
	groups := make(map[MonthKey]*MonthBucket)
	for _, tx := range txs {
		if tx.Undated() {
			continue
		}
		key := MonthKeyOf(tx.Date)
		b, ok := groups[key]
		if !ok {
			b = &MonthBucket{Month: key, ByCategory: make(map[core.Category]core.Money)}
			groups[key] = b
		}
		if tx.Category.IsIncome() {
			b.MoneyIn = b.MoneyIn.Add(tx.Amount)
			continue
		}
		b.MoneyOut = b.MoneyOut.Add(tx.Amount)
		b.ByCategory[tx.Category] = b.ByCategory[tx.Category].Add(tx.Amount)
	}

	out := make([]MonthBucket, 0, len(groups))
	for _, b := range groups {
		b.NetCashflow = b.MoneyIn.Sub(b.MoneyOut)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	if len(out) > MonthWindow {
		out = out[len(out)-MonthWindow:]
	}
	return out
}
