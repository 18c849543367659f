package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// DateLayout is the calendar-day format used for every stored date.
const DateLayout = "2006-01-02"

type (
	Kind string

	Date struct {
		time.Time
	}

	// Transaction is a single income or expense record owned by a user.
	Transaction struct {
		ID            string          `json:"id"`
		UserID        string          `json:"userId"`
		Description   string          `json:"description"`
		Amount        decimal.Decimal `json:"amount"`
		Date          string          `json:"date"`
		PaymentMethod string          `json:"paymentMethod"`
		Category      string          `json:"category"`
		ImageRef      string          `json:"imageRef,omitempty"`
		Kind          Kind            `json:"kind"`
	}

	// Category is a user-defined spending bucket with an optional limit.
	Category struct {
		ID     string          `json:"id"`
		UserID string          `json:"userId"`
		Name   string          `json:"name"`
		Limit  decimal.Decimal `json:"limit"`
	}

	// MonthlyGoal holds a user's min/max spending thresholds. There is at
	// most one per user and it is keyed by the user id.
	MonthlyGoal struct {
		UserID        string          `json:"userId"`
		MinGoalAmount decimal.Decimal `json:"minGoalAmount"`
		MaxGoalAmount decimal.Decimal `json:"maxGoalAmount"`
		GoalSet       bool            `json:"goalSet"`
	}

	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"passwordHash"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

// ErrValidation is wrapped by every input validation error.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidDate        = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyDescription   = fmt.Errorf("%w: empty description", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, maxDescriptionLength)
	ErrEmptyCategory      = fmt.Errorf("%w: empty category", ErrValidation)
	ErrEmptyPaymentMethod = fmt.Errorf("%w: empty payment method", ErrValidation)
	ErrInvalidKind        = fmt.Errorf("%w: invalid kind", ErrValidation)
	ErrEmptyCategoryName  = fmt.Errorf("%w: empty category name", ErrValidation)
	ErrNegativeLimit      = fmt.Errorf("%w: limit must not be negative", ErrValidation)
	ErrNegativeGoal       = fmt.Errorf("%w: goal amounts must not be negative", ErrValidation)
	ErrGoalRange          = fmt.Errorf("%w: minimum goal must not exceed maximum goal", ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("%w: invalid email", ErrValidation)
	ErrPasswordTooShort   = fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	ErrInvalidDateRange   = fmt.Errorf("%w: start date after end date", ErrValidation)
)

const (
	MinPasswordLength    = 8
	maxDescriptionLength = 200
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsExpense reports whether t counts towards spending. A blank kind is
// treated as an expense.
func (t Transaction) IsExpense() bool {
	return t.Kind != KindIncome
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	if strings.TrimSpace(t.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategoryName
	}
	if c.Limit.IsNegative() {
		return ErrNegativeLimit
	}
	return nil
}

// Validate enforces min <= max. This is only checked when a goal is
// written; stored goals are never re-validated.
func (g MonthlyGoal) Validate() error {
	if g.MinGoalAmount.IsNegative() || g.MaxGoalAmount.IsNegative() {
		return ErrNegativeGoal
	}
	if g.MinGoalAmount.GreaterThan(g.MaxGoalAmount) {
		return ErrGoalRange
	}
	return nil
}

// NormalizeCategory is the grouping key for category names.
func NormalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks registration input.
func ValidateCredentials(email, password string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
