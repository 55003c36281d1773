package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Bills         Category = "Bills"
	Other         Category = "Other"
	Income        Category = "Income"
)

// MaxNotesLength bounds the free-text notes of a transaction.
const MaxNotesLength = 500

type (
	// Category classifies a transaction. The set is closed; Income is the
	// only credit category, every other category is a debit.
	Category string

	Money struct {
		Cents int64
	}

	// Transaction is a single recorded movement of money. A zero Date means
	// the stored value could not be parsed.
	Transaction struct {
		ID        string
		Owner     string
		Amount    Money
		Category  Category
		Notes     string
		Date      time.Time
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// CategoryAmount represents an amount aggregated by category.
	CategoryAmount struct {
		Category Category
		Amount   Money
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidDate     = errors.New("invalid date")
	ErrNotesTooLong    = fmt.Errorf("notes too long (max %d characters)", MaxNotesLength)
)

var categories = []Category{Food, Transport, Entertainment, Shopping, Bills, Other, Income}

// Categories returns every known category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ExpenseCategories returns the debit categories in display order.
func ExpenseCategories() []Category {
	out := make([]Category, 0, len(categories)-1)
	for _, c := range categories {
		if !c.IsIncome() {
			out = append(out, c)
		}
	}
	return out
}

// ParseCategory matches s against the known categories, ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) IsIncome() bool {
	return c == Income
}

func (c Category) IsKnown() bool {
	for _, k := range categories {
		if c == k {
			return true
		}
	}
	return false
}

// Rank is the position of c in display order. Unknown categories rank after
// every known one.
func (c Category) Rank() int {
	for i, k := range categories {
		if c == k {
			return i
		}
	}
	return len(categories)
}

func (c Category) String() string {
	return string(c)
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Undated reports whether the transaction carries no usable date.
func (t Transaction) Undated() bool {
	return t.Date.IsZero()
}

// Validate checks a transaction before it is written. Reads never validate:
// stored records are aggregated as they are.
func (t Transaction) Validate() error {
	if t.Undated() {
		return ErrInvalidDate
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Category.IsKnown() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, string(t.Category))
	}
	if len([]rune(t.Notes)) > MaxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}
