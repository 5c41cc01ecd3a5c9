package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

type CategoryGuesser interface {
	Categorize(ctx context.Context, req ml.CategorizeRequest) (ml.CategorizeResponse, error)
}

// Categorizer is the follow-up task of an uncategorized transaction: ask the
// collaborator for a category, store it once, then evaluate the budget.
type Categorizer struct {
	store   storage.Store
	guesser CategoryGuesser
	alerts  AlertEvaluator
	cache   Invalidator
	timeout time.Duration
}

func NewCategorizer(store storage.Store, guesser CategoryGuesser, alerts AlertEvaluator, cache Invalidator, timeout time.Duration) *Categorizer {
	if timeout <= 0 {
		timeout = ml.DefaultTimeout
	}
	return &Categorizer{store: store, guesser: guesser, alerts: alerts, cache: cache, timeout: timeout}
}

// Categorize returns the alert the categorized transaction triggered, if any.
// Collaborator failures leave the category null and are not returned: the
// task is not retried automatically. Storage failures are returned.
func (c *Categorizer) Categorize(ctx context.Context, userID, txID string) (*core.Alert, error) {
	tx, err := c.store.GetTransaction(ctx, userID, txID)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Transaction gone before categorization", "transaction_id", txID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if tx.HasCategory() {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	resp, err := c.guesser.Categorize(callCtx, ml.CategorizeRequest{
		Description: tx.Description,
		Amount:      ml.Amount(tx.Amount),
		Type:        tx.Kind,
	})
	cancel()
	if err != nil {
		slog.WarnContext(ctx, "Categorization unavailable, transaction stays uncategorized",
			"transaction_id", tx.ID, "retryable", ml.IsRetryable(err), "error", err)
		return nil, nil
	}

	categoryID, err := c.resolve(ctx, resp)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, ErrUnknownCategory) {
			slog.WarnContext(ctx, "Collaborator returned an unknown category",
				"transaction_id", tx.ID, "category", resp.Category, "category_id", resp.CategoryID)
			return nil, nil
		}
		return nil, err
	}

	set, err := c.store.SetTransactionCategory(ctx, tx.UserID, tx.ID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("set category: %w", err)
	}
	if !set {
		return nil, nil
	}
	if c.cache != nil {
		c.cache.Invalidate(tx.UserID)
	}

	slog.InfoContext(ctx, "Transaction categorized",
		"transaction_id", tx.ID,
		"category_id", categoryID,
		"confidence", resp.Confidence,
		"method", resp.Method)

	tx.CategoryID = &categoryID
	alert, err := c.alerts.OnTransaction(ctx, tx)
	if err != nil {
		slog.WarnContext(ctx, "Budget evaluation failed after categorization",
			"transaction_id", tx.ID, "error", err)
		return nil, nil
	}
	return alert, nil
}

func (c *Categorizer) resolve(ctx context.Context, resp ml.CategorizeResponse) (string, error) {
	if id := strings.TrimSpace(resp.CategoryID); id != "" {
		if err := knownCategory(ctx, c.store, id); err != nil {
			return "", err
		}
		return id, nil
	}
	cat, err := c.store.CategoryByName(ctx, resp.Category)
	if err != nil {
		return "", err
	}
	return cat.ID, nil
}
