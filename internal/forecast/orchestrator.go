// Package forecast proxies forecast and recommendation requests to the ML
// collaborator with a bounded history payload and a fixed timeout.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

const DefaultHistoryLimit = 365

type Collaborator interface {
	Forecast(ctx context.Context, req ml.ForecastRequest) (ml.ForecastResult, error)
	Recommend(ctx context.Context, userID string) (ml.RecommendationSet, error)
}

type History interface {
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
}

type Config struct {
	HistoryLimit int
	Timeout      time.Duration
}

type Orchestrator struct {
	ml      Collaborator
	history History
	cfg     Config
}

func NewOrchestrator(c Collaborator, h History, cfg Config) *Orchestrator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = ml.DefaultTimeout
	}
	return &Orchestrator{ml: c, history: h, cfg: cfg}
}

// Payload builds the forecast request: the user's most recent expenses,
// newest first, capped at the configured history limit.
func (o *Orchestrator) Payload(ctx context.Context, userID string) (ml.ForecastRequest, error) {
	txs, err := o.history.ListTransactions(ctx, storage.TransactionFilter{
		UserID: userID,
		Kind:   core.Expense,
		Limit:  o.cfg.HistoryLimit,
	})
	if err != nil {
		return ml.ForecastRequest{}, fmt.Errorf("forecast history: %w", err)
	}

	items := make([]ml.HistoryItem, 0, len(txs))
	for _, tx := range txs {
		item := ml.HistoryItem{
			ID:              tx.ID,
			UserID:          tx.UserID,
			Amount:          ml.Amount(tx.Amount),
			Description:     tx.Description,
			TransactionDate: tx.OccurredAt.UTC().Format(time.DateOnly),
		}
		if tx.HasCategory() {
			item.CategoryID = *tx.CategoryID
		}
		items = append(items, item)
	}
	return ml.ForecastRequest{UserID: userID, Transactions: items}, nil
}

func (o *Orchestrator) Forecast(ctx context.Context, userID string) (ml.ForecastResult, error) {
	req, err := o.Payload(ctx, userID)
	if err != nil {
		return ml.ForecastResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	res, err := o.ml.Forecast(ctx, req)
	if err != nil {
		err = classify(err)
		slog.WarnContext(ctx, "Forecast failed", "user_id", userID, "history", len(req.Transactions), "error", err)
		return ml.ForecastResult{}, fmt.Errorf("forecast: %w", err)
	}
	return res, nil
}

func (o *Orchestrator) Recommend(ctx context.Context, userID string) (ml.RecommendationSet, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	res, err := o.ml.Recommend(ctx, userID)
	if err != nil {
		err = classify(err)
		slog.WarnContext(ctx, "Recommendation failed", "user_id", userID, "error", err)
		return ml.RecommendationSet{}, fmt.Errorf("recommend: %w", err)
	}
	return res, nil
}

// Insights carries whichever of the two calls succeeded.
type Insights struct {
	Forecast        *ml.ForecastResult
	Recommendations *ml.RecommendationSet
	ForecastErr     error
	RecommendErr    error
}

// Insights runs Forecast and Recommend concurrently. It fails only when both fail.
func (o *Orchestrator) Insights(ctx context.Context, userID string) (Insights, error) {
	var (
		out Insights
		g   errgroup.Group
	)
	g.Go(func() error {
		res, err := o.Forecast(ctx, userID)
		if err != nil {
			out.ForecastErr = err
			return nil
		}
		out.Forecast = &res
		return nil
	})
	g.Go(func() error {
		res, err := o.Recommend(ctx, userID)
		if err != nil {
			out.RecommendErr = err
			return nil
		}
		out.Recommendations = &res
		return nil
	})
	_ = g.Wait()

	if out.ForecastErr != nil && out.RecommendErr != nil {
		return out, errors.Join(out.ForecastErr, out.RecommendErr)
	}
	return out, nil
}

// classify makes sure every failure carries one of the collaborator
// sentinels. Anything unrecognised, deadlines included, counts as unavailable.
func classify(err error) error {
	if errors.Is(err, core.ErrCollaboratorUnavailable) || errors.Is(err, core.ErrCollaboratorRejected) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrCollaboratorUnavailable, err)
}
