package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flowtrack/internal/core"
)

func formatRow(tx core.Transaction) []any {
	return []any{
		tx.ID,
		core.FormatDate(tx.Date),
		string(tx.Category),
		tx.Amount.Decimal(),
		tx.Notes,
		tx.Owner,
	}
}

// parseRow converts one sheet row into a transaction. Rows without an ID or
// with an unreadable amount (the header, blank rows) are skipped. An
// unreadable date is kept as an undated transaction.
func parseRow(cols []string, loc *time.Location) (core.Transaction, bool) {
	id := safeGet(cols, colID)
	if id == "" || strings.EqualFold(id, "id") {
		return core.Transaction{}, false
	}
	cents, ok := parseDollarsToCents(safeGet(cols, colAmount))
	if !ok {
		return core.Transaction{}, false
	}
	return core.Transaction{
		ID:       id,
		Owner:    safeGet(cols, colOwner),
		Amount:   core.Money{Cents: cents},
		Category: core.Category(safeGet(cols, colCategory)),
		Notes:    safeGet(cols, colNotes),
		Date:     core.ParseDateLenient(safeGet(cols, colDate), loc),
	}, true
}

// parseDollarsToCents reads amounts as the sheet may render them:
// "12.50", "$1,234.50", "1,234", "12,5" or a plain number. Without a dot, a
// comma is a thousands separator only when every group after it has three
// digits.
func parseDollarsToCents(s string) (int64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && (strings.Contains(s, ".") || thousandsGrouped(s)) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if cents, err := core.ParseDecimalToCents(s); err == nil {
		return cents, true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64((f * 100.0) + 0.5), true
}

// thousandsGrouped reports whether s looks like "1,234" or "12,345,678".
func thousandsGrouped(s string) bool {
	groups := strings.Split(s, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 || !allDigits(groups[0]) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
