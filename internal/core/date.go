package core

import (
	"strings"
	"time"
)

// Accepted layouts, tried in order. The first two carry their own offset.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses a transaction date. Values without an explicit offset are
// interpreted in loc; a nil loc means UTC.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	for i, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if i < 2 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// ParseDateLenient is ParseDate for stored values: anything unparseable
// yields the zero time, which marks the transaction as undated.
func ParseDateLenient(s string, loc *time.Location) time.Time {
	t, err := ParseDate(s, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatDate renders t in the canonical storage layout. Undated values
// render as the empty string.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// SameDay compares calendar components of a and b, each read in its own
// location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
