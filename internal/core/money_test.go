package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	valid := map[string]int64{
		"7":        700,
		"7.0":      700,
		"7.45":     745,
		"7,45":     745,
		"0.09":     9,
		"2.675":    268, // half-up
		"2.674":    267,
		"\t15.50 ": 1550,
		".25":      25,
		"0":        0,
		"1250.00":  125000,
	}
	for in, want := range valid {
		got, err := ParseDecimalToCents(in)
		if err != nil || got != want {
			t.Errorf("ParseDecimalToCents(%q) = %d, %v; want %d", in, got, err, want)
		}
	}

	invalid := []string{"", ".", "-3", "+3", "ten", "4.5.6", "1,250.00", "99999999999999999999"}
	for _, in := range invalid {
		if got, err := ParseDecimalToCents(in); err == nil {
			t.Errorf("ParseDecimalToCents(%q) = %d, want error", in, got)
		}
	}
}

func TestMoneyFormatting(t *testing.T) {
	cases := []struct {
		cents   int64
		str     string
		decimal string
	}{
		{0, "$0.00", "0.00"},
		{5, "$0.05", "0.05"},
		{1234, "$12.34", "12.34"},
		{123456789, "$1,234,567.89", "1234567.89"},
		{100000, "$1,000.00", "1000.00"},
		{-80000, "-$800.00", "-800.00"},
	}
	for _, tc := range cases {
		m := Money{Cents: tc.cents}
		if got := m.String(); got != tc.str {
			t.Errorf("String(%d) = %q, want %q", tc.cents, got, tc.str)
		}
		if got := m.Decimal(); got != tc.decimal {
			t.Errorf("Decimal(%d) = %q, want %q", tc.cents, got, tc.decimal)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: 5050}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":50.50}` {
		t.Fatalf("unexpected json %s", b)
	}

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":12.5,"b":"3,10"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.A.Cents != 1250 || in.B.Cents != 310 {
		t.Fatalf("unexpected values %+v", in)
	}
	if err := json.Unmarshal([]byte(`{"a":-1}`), &in); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}
