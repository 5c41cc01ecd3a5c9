package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period is a half-open interval [Start, End).
type Period struct {
	Start       time.Time
	End         time.Time
	Granularity Granularity
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID string
	Amount     decimal.Decimal
}

// KindTotals is the raw per-kind aggregate returned by storage.
type KindTotals struct {
	Income        decimal.Decimal
	Expenses      decimal.Decimal
	IncomeCount   int64
	ExpensesCount int64
}

// Summary is the analytics view of a single period.
type Summary struct {
	UserID           string
	Period           Period
	Income           decimal.Decimal
	Expenses         decimal.Decimal
	Net              decimal.Decimal
	TransactionCount int64
	ByCategory       []CategoryAmount
}
