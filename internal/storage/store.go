// Package storage is the persistence collaborator of the budget engine.
//
// Every operation is scoped by user id; there are no cross-user queries.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no constraint".
type TransactionFilter struct {
	UserID     string
	Kind       core.Kind
	CategoryID string
	From       time.Time // inclusive
	To         time.Time // exclusive
	Limit      int
}

type (
	TransactionStore interface {
		InsertTransaction(ctx context.Context, tx core.Transaction) error
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		// ListTransactions returns matches ordered by occurred_at, most recent first.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
		// SetTransactionCategory assigns a category once; it reports false when
		// the transaction already had one.
		SetTransactionCategory(ctx context.Context, userID, id, categoryID string) (bool, error)
		SumExpenses(ctx context.Context, userID, categoryID string, start, end time.Time) (decimal.Decimal, error)
		SumByKind(ctx context.Context, userID string, start, end time.Time) (core.KindTotals, error)
		SumExpensesByCategory(ctx context.Context, userID string, start, end time.Time) ([]core.CategoryAmount, error)
	}

	GoalStore interface {
		InsertGoal(ctx context.Context, g core.BudgetGoal) error
		ListGoals(ctx context.Context, userID string) ([]core.BudgetGoal, error)
		// ActiveGoals returns active goals for the category, newest first.
		ActiveGoals(ctx context.Context, userID, categoryID string) ([]core.BudgetGoal, error)
		DeactivateGoal(ctx context.Context, userID, id string) error
	}

	AlertStore interface {
		// InsertAlert reports false when an alert for the same
		// (user, category, period, severity) already exists, or when a is a
		// warning and the period already has a critical alert. The check and
		// the write happen in one statement.
		InsertAlert(ctx context.Context, a core.Alert) (bool, error)
		AlertExists(ctx context.Context, userID, categoryID string, period core.Period, severity core.Severity) (bool, error)
		ListAlerts(ctx context.Context, userID string, limit int) ([]core.Alert, error)
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		CategoryByName(ctx context.Context, name string) (core.Category, error)
	}

	Store interface {
		TransactionStore
		GoalStore
		AlertStore
		CategoryStore
		Ping(ctx context.Context) error
		Close() error
	}
)
