package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

// ExpenseSummer is the read capability the aggregator needs from storage.
type ExpenseSummer interface {
	SumExpenses(ctx context.Context, userID, categoryID string, start, end time.Time) (decimal.Decimal, error)
}

type Aggregator struct {
	store ExpenseSummer
}

func NewAggregator(store ExpenseSummer) *Aggregator {
	return &Aggregator{store: store}
}

// SpendFor totals the user's expenses in the category over p. Uncategorized
// transactions never count toward a budget, so an empty category id is zero.
func (a *Aggregator) SpendFor(ctx context.Context, userID, categoryID string, p core.Period) (decimal.Decimal, error) {
	if categoryID == "" {
		return decimal.Zero, nil
	}
	spent, err := a.store.SumExpenses(ctx, userID, categoryID, p.Start, p.End)
	if err != nil {
		if errors.Is(err, core.ErrStorageUnavailable) {
			return decimal.Zero, fmt.Errorf("spend for %s: %w", categoryID, err)
		}
		return decimal.Zero, fmt.Errorf("spend for %s: %w: %w", categoryID, core.ErrStorageUnavailable, err)
	}
	return spent, nil
}
