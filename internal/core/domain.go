package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the calendar date format used for stored and submitted dates.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	// Transaction is a stored ledger record.
	Transaction struct {
		ID          string
		Amount      float64
		Type        TransactionType
		Category    string
		Description string
		Date        string // YYYY-MM-DD
	}

	// NewTransaction carries the fields of a record that does not have an ID yet.
	// An empty Category is derived from Description.
	NewTransaction struct {
		Amount      float64
		Type        TransactionType
		Category    string
		Description string
		Date        string
	}
)

var (
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrInvalidPeriodType = errors.New("invalid period type")
	ErrNotFound          = errors.New("transaction not found")
)

// StorageError reports a failure of the storage engine itself, as opposed to
// a validation or lookup failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

var (
	expenseCategories = []string{"餐饮", "交通", "购物", "娱乐", "其他"}
	incomeCategories  = []string{"工资", "生活费", "其他收入"}
)

// ExpenseCategories returns the fixed expense category set.
func ExpenseCategories() []string {
	return slices.Clone(expenseCategories)
}

// IncomeCategories returns the fixed income category set.
func IncomeCategories() []string {
	return slices.Clone(incomeCategories)
}

// ValidateCategory checks category against the set that belongs to t.
func (t TransactionType) ValidateCategory(category string) error {
	switch t {
	case Expense:
		if !slices.Contains(expenseCategories, category) {
			return fmt.Errorf("%w: %q is not an expense category", ErrInvalidCategory, category)
		}
	case Income:
		if !slices.Contains(incomeCategories, category) {
			return fmt.Errorf("%w: %q is not an income category", ErrInvalidCategory, category)
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidCategory, string(t))
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q, expected format: YYYY-MM-DD", ErrInvalidDateFormat, s)
	}
	return d, nil
}

// CategoryFromDescription returns the text before the first ':' of desc, trimmed.
func CategoryFromDescription(desc string) string {
	before, _, _ := strings.Cut(desc, ":")
	return strings.TrimSpace(before)
}

// ComposeDescription builds the stored description "<category>: <desc>", or just
// the category when desc is empty.
func ComposeDescription(category, desc string) string {
	if desc == "" {
		return category
	}
	return category + ": " + desc
}
