package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// PeriodMonthly is the only budget period currently supported.
const PeriodMonthly = "monthly"

type (
	TransactionType string

	// User is a registered account. Email is stored lowercase and is the
	// unique lookup key. Digest is the salted password hash, never the
	// plaintext.
	User struct {
		ID        string
		FullName  string
		Email     string
		Digest    string
		Purpose   string
		CreatedAt time.Time
		LastLogin time.Time // zero until the first successful login
		Active    bool
	}

	// Session is a time-bounded proof of authentication. Remember controls
	// which storage tier holds it and how long it lives.
	Session struct {
		ID        string
		UserID    string
		Remember  bool
		IssuedAt  time.Time
		ExpiresAt time.Time
	}

	// Transaction is a single income or expense record owned by one user.
	// Amount is always a positive magnitude; the sign is implied by Type.
	Transaction struct {
		ID          string
		UserID      string
		Type        TransactionType
		Category    string
		Amount      Money
		Date        time.Time
		Description string
	}

	// BudgetEntry is a spending limit for one (user, category, period).
	BudgetEntry struct {
		UserID    string
		Category  string
		Limit     Money
		Period    string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrZeroDate        = errors.New("date cannot be zero")
	ErrEmptyUser       = errors.New("empty user reference")
	ErrInvalidPeriod   = errors.New("invalid budget period")
	ErrNotFound        = errors.New("not found")
	ErrDuplicateEmail  = errors.New("email is already registered")
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials carries the same message whether the email is
	// unknown, the account is inactive, or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has a plausible local@domain.tld shape.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (tx Transaction) Validate() error {
	if tx.UserID == "" {
		return ErrEmptyUser
	}
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(tx.Category) == "" {
		return ErrEmptyCategory
	}
	if tx.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if tx.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (b BudgetEntry) Validate() error {
	if b.UserID == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Limit.Cents <= 0 {
		return ErrInvalidAmount
	}
	if b.Period != PeriodMonthly {
		return ErrInvalidPeriod
	}
	return nil
}

// Expired reports whether the session is past its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Sanitized returns a copy of the user with the password digest removed,
// safe to hand to presentation layers.
func (u User) Sanitized() User {
	u.Digest = ""
	return u
}

// TxFilter narrows transaction listings. Zero values mean "no filter";
// the date range is half-open [From, To).
type TxFilter struct {
	Type     TransactionType
	Category string
	From     time.Time
	To       time.Time
}

// MonthWindow identifies one calendar month, the window budget status is
// evaluated over.
type MonthWindow struct {
	Year  int
	Month time.Month
}

// WindowOf returns the month window containing t.
func WindowOf(t time.Time) MonthWindow {
	return MonthWindow{Year: t.Year(), Month: t.Month()}
}

// Bounds returns the half-open [start, end) range of the window in loc.
func (w MonthWindow) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the window.
func (w MonthWindow) Contains(t time.Time) bool {
	return t.Year() == w.Year && t.Month() == w.Month
}
