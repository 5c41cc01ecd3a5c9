package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"

	SourceManual    Source = "manual"
	SourceImported  Source = "imported"
	SourcePredicted Source = "predicted"

	Month Granularity = "month"
	Week  Granularity = "week"

	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"

	AlertOverspending  AlertType = "overspending"
	AlertAnomaly       AlertType = "anomaly"
	AlertInformational AlertType = "informational"
)

type (
	Kind        string
	Source      string
	Granularity string
	Severity    string
	AlertType   string

	Transaction struct {
		ID          string
		UserID      string
		Amount      decimal.Decimal
		Kind        Kind
		CategoryID  *string // nil until supplied or guessed
		Description string
		OccurredAt  time.Time
		Source      Source
		CreatedAt   time.Time
	}

	BudgetGoal struct {
		ID          string
		UserID      string
		CategoryID  string
		Amount      decimal.Decimal
		Granularity Granularity
		Active      bool
		CreatedAt   time.Time
	}

	// BudgetStatus is derived on every evaluation and never persisted.
	BudgetStatus struct {
		GoalID       string
		Spent        decimal.Decimal
		BudgetAmount decimal.Decimal
		Ratio        decimal.Decimal
		Severity     Severity
	}

	Alert struct {
		ID          string
		UserID      string
		CategoryID  string
		GoalID      string
		Type        AlertType
		Severity    Severity
		Message     string
		PeriodStart time.Time
		PeriodEnd   time.Time
		CreatedAt   time.Time
	}

	Category struct {
		ID   string
		Name string
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidSource      = errors.New("invalid transaction source")
	ErrInvalidGranularity = errors.New("invalid period granularity")
	ErrEmptyUser          = errors.New("empty user id")
	ErrEmptyCategory      = errors.New("empty category id")
	ErrZeroTime           = errors.New("occurred_at cannot be zero")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	}
	return ErrInvalidKind
}

func (s Source) Validate() error {
	switch s {
	case SourceManual, SourceImported, SourcePredicted:
		return nil
	}
	return ErrInvalidSource
}

func (g Granularity) Validate() error {
	switch g {
	case Month, Week:
		return nil
	}
	return ErrInvalidGranularity
}

// Rank orders severities so escalation can be compared.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	}
	return 0
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Source.Validate(); err != nil {
		return err
	}
	if t.OccurredAt.IsZero() {
		return ErrZeroTime
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if t.CategoryID != nil && strings.TrimSpace(*t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// HasCategory reports whether the transaction can take part in budget aggregation.
func (t Transaction) HasCategory() bool {
	return t.CategoryID != nil && *t.CategoryID != ""
}

func (g BudgetGoal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(g.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if !g.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return g.Granularity.Validate()
}
