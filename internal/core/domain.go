package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

const (
	maxTitleLength    = 200
	maxCategoryLength = 100
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	// Category groups transactions. Titles are unique and case-sensitive.
	Category struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	Transaction struct {
		ID         string          `json:"id"`
		Title      string          `json:"title"`
		Value      Money           `json:"value"`
		Type       TransactionType `json:"type"`
		CategoryID string          `json:"category_id"`
		Category   *Category       `json:"category,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
		UpdatedAt  time.Time       `json:"updated_at"`
	}

	// NewTransaction is the input of a transaction creation, with the
	// category given by title.
	NewTransaction struct {
		Title    string
		Value    Money
		Type     TransactionType
		Category string
	}

	Balance struct {
		Income  Money `json:"income"`
		Outcome Money `json:"outcome"`
		Total   Money `json:"total"`
	}
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrMalformedImportRow  = errors.New("malformed import row")

	ErrEmptyTitle    = errors.New("empty title")
	ErrTitleTooLong  = errors.New("title too long (max 200 characters)")
	ErrEmptyCategory = errors.New("empty category")
	ErrCategoryLong  = errors.New("category too long (max 100 characters)")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
)

var validationErrors = []error{
	ErrEmptyTitle,
	ErrTitleTooLong,
	ErrEmptyCategory,
	ErrCategoryLong,
	ErrInvalidAmount,
	ErrInvalidType,
}

// IsValidationError reports whether err is caused by invalid input.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseTransactionType accepts "income" or "outcome", ignoring case and
// surrounding spaces.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Outcome:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

func (n NewTransaction) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrEmptyTitle
	}
	if len(n.Title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if err := n.Value.Validate(); err != nil {
		return err
	}
	if !n.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(n.Category) == "" {
		return ErrEmptyCategory
	}
	if len(n.Category) > maxCategoryLength {
		return ErrCategoryLong
	}
	return nil
}

// ComputeBalance scans ts and sums income and outcome values. Sums that do
// not fit in int64 cents fail with ErrInvalidAmount.
func ComputeBalance(ts []Transaction) (Balance, error) {
	var b Balance
	for _, t := range ts {
		next, err := b.Apply(t.Type, t.Value)
		if err != nil {
			return Balance{}, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		b = next
	}
	return b, nil
}

// Apply returns the balance after adding a transaction of the given type.
// b is returned unchanged with ErrInvalidAmount when the sum would overflow.
func (b Balance) Apply(t TransactionType, v Money) (Balance, error) {
	switch t {
	case Income:
		sum, err := addCents(b.Income.Cents, v.Cents)
		if err != nil {
			return b, err
		}
		b.Income.Cents = sum
	case Outcome:
		sum, err := addCents(b.Outcome.Cents, v.Cents)
		if err != nil {
			return b, err
		}
		b.Outcome.Cents = sum
	}
	b.Total.Cents = b.Income.Cents - b.Outcome.Cents
	return b, nil
}

func addCents(a, v int64) (int64, error) {
	if v < 0 || a > math.MaxInt64-v {
		return 0, fmt.Errorf("%w: balance out of range", ErrInvalidAmount)
	}
	return a + v, nil
}

// Admits reports whether a transaction of type t and value v keeps the total
// non-negative. Income is always admitted.
func (b Balance) Admits(t TransactionType, v Money) bool {
	if t != Outcome {
		return true
	}
	return b.Total.Cents >= v.Cents
}

// RowError reports a rejected line of an import file. Line is 1-based and
// counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s at line %d: %v", ErrMalformedImportRow, e.Line, e.Err)
}

func (e *RowError) Unwrap() []error {
	return []error{ErrMalformedImportRow, e.Err}
}
