package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

var ErrUnknownCategory = errors.New("unknown category")

// AlertEvaluator runs budget evaluation for a stored transaction.
type AlertEvaluator interface {
	OnTransaction(ctx context.Context, tx core.Transaction) (*core.Alert, error)
}

// Dispatcher hands the categorization of a stored transaction to a
// background worker (AMQP queue or in-process pool).
type Dispatcher interface {
	PublishCategorize(ctx context.Context, userID, txID string) error
}

// Invalidator drops cached read models of a user.
type Invalidator interface {
	Invalidate(userID string)
}

type TransactionInput struct {
	UserID      string
	Amount      decimal.Decimal
	Kind        core.Kind
	CategoryID  string
	Description string
	OccurredAt  time.Time
	Source      core.Source
}

type CreateResult struct {
	Transaction core.Transaction
	// Alert is set when the transaction crossed a budget threshold.
	Alert *core.Alert
	// CategorizationQueued reports that the category will be filled in later.
	CategorizationQueued bool
}

// TransactionService writes transactions first and treats everything that
// follows (alerting, categorization, cache invalidation) as side effects
// that never fail the write.
type TransactionService struct {
	store      storage.Store
	alerts     AlertEvaluator
	cache      Invalidator
	dispatcher Dispatcher
	now        func() time.Time
}

func NewTransactionService(store storage.Store, alerts AlertEvaluator, cache Invalidator, dispatcher Dispatcher) *TransactionService {
	return &TransactionService{
		store:      store,
		alerts:     alerts,
		cache:      cache,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (CreateResult, error) {
	now := s.now().UTC()
	tx := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      strings.TrimSpace(in.UserID),
		Amount:      in.Amount.Round(2),
		Kind:        in.Kind,
		Description: strings.TrimSpace(in.Description),
		OccurredAt:  in.OccurredAt,
		Source:      in.Source,
		CreatedAt:   now,
	}
	if tx.Source == "" {
		tx.Source = core.SourceManual
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = now
	}
	if id := strings.TrimSpace(in.CategoryID); id != "" {
		tx.CategoryID = &id
	}
	if err := tx.Validate(); err != nil {
		return CreateResult{}, err
	}
	if tx.HasCategory() {
		if err := s.checkCategory(ctx, *tx.CategoryID); err != nil {
			return CreateResult{}, err
		}
	}

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return CreateResult{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate(tx.UserID)

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", tx.ID,
		"user_id", tx.UserID,
		"kind", tx.Kind,
		"amount", tx.Amount.StringFixed(2),
		"categorized", tx.HasCategory())

	res := CreateResult{Transaction: tx}
	if !tx.HasCategory() {
		res.CategorizationQueued = s.dispatch(ctx, tx)
		return res, nil
	}

	alert, err := s.alerts.OnTransaction(ctx, tx)
	if err != nil {
		slog.WarnContext(ctx, "Budget evaluation failed, transaction kept",
			"transaction_id", tx.ID, "error", err)
	}
	res.Alert = alert
	return res, nil
}

func (s *TransactionService) dispatch(ctx context.Context, tx core.Transaction) bool {
	if s.dispatcher == nil {
		slog.WarnContext(ctx, "No categorization dispatcher, transaction stays uncategorized",
			"transaction_id", tx.ID)
		return false
	}
	if err := s.dispatcher.PublishCategorize(ctx, tx.UserID, tx.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to dispatch categorization",
			"transaction_id", tx.ID, "error", err)
		return false
	}
	return true
}

func (s *TransactionService) checkCategory(ctx context.Context, id string) error {
	return knownCategory(ctx, s.store, id)
}

// knownCategory returns ErrUnknownCategory unless id is in the categories table.
func knownCategory(ctx context.Context, store storage.CategoryStore, id string) error {
	cats, err := store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		if c.ID == id {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCategory, id)
}

func (s *TransactionService) invalidate(userID string) {
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

func (s *TransactionService) List(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	if strings.TrimSpace(f.UserID) == "" {
		return nil, core.ErrEmptyUser
	}
	return s.store.ListTransactions(ctx, f)
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *TransactionService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *TransactionService) Alerts(ctx context.Context, userID string, limit int) ([]core.Alert, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	return s.store.ListAlerts(ctx, userID, limit)
}
