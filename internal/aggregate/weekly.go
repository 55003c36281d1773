// Package aggregate turns transactions into the chart series shown on the
// dashboard: seven daily expense buckets for the current week and up to six
// monthly cashflow buckets.
//
// Every function here is pure. The caller supplies "now", inputs are never
// modified, and each call returns freshly allocated results.
package aggregate

import (
	"time"

	"flowtrack/internal/core"
)

// DaysInWeek is the number of buckets Weekly always returns.
const DaysInWeek = 7

var dayLabels = [DaysInWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekBucket is the expense total of one calendar day.
type WeekBucket struct {
	Date   time.Time  `json:"-"`
	Day    string     `json:"day"`
	Amount core.Money `json:"amount"`
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func civil(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

// WeekStart returns midnight of the Monday of the week containing now, in
// now's location.
func WeekStart(now time.Time) time.Time {
	offset := int(now.Weekday()) - 1
	if now.Weekday() == time.Sunday {
		offset = 6
	}
	y, m, d := now.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, now.Location())
}

// Weekly sums non-Income amounts per day for the Monday to Sunday week that
// contains now. Transactions are matched by calendar day, read in each
// transaction's own location. Undated transactions never match.
func Weekly(now time.Time, txs []core.Transaction) []WeekBucket {
	start := WeekStart(now)
	buckets := make([]WeekBucket, DaysInWeek)
	index := make(map[civilDate]int, DaysInWeek)
	for i := range buckets {
		// time.Date normalises day overflow across month and year ends.
		day := time.Date(start.Year(), start.Month(), start.Day()+i, 0, 0, 0, 0, start.Location())
		buckets[i] = WeekBucket{Date: day, Day: dayLabels[i]}
		index[civil(day)] = i
	}
	for _, tx := range txs {
		if tx.Undated() || tx.Category.IsIncome() {
			continue
		}
		if i, ok := index[civil(tx.Date)]; ok {
			buckets[i].Amount = buckets[i].Amount.Add(tx.Amount)
		}
	}
	return buckets
}

// WeekTotal sums the amounts of the given buckets.
func WeekTotal(buckets []WeekBucket) core.Money {
	var total core.Money
	for _, b := range buckets {
		total = total.Add(b.Amount)
	}
	return total
}
