// Package analytics builds per-period income/expense summaries.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/budget"
	"github.com/arsenis-cmd/BudgetBot/internal/cache"
	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

// Store is the aggregate read path the summarizer needs.
type Store interface {
	SumByKind(ctx context.Context, userID string, start, end time.Time) (core.KindTotals, error)
	SumExpensesByCategory(ctx context.Context, userID string, start, end time.Time) ([]core.CategoryAmount, error)
}

type Summarizer struct {
	store Store
	cache cache.Cache[core.Summary]
	loc   *time.Location
}

// NewSummarizer caches up to cacheSize summaries for ttl. A cacheSize of
// zero disables caching.
func NewSummarizer(store Store, loc *time.Location, cacheSize int, ttl time.Duration) *Summarizer {
	s := &Summarizer{store: store, loc: loc}
	if cacheSize > 0 {
		s.cache = cache.NewLRUCache[core.Summary](cacheSize, ttl)
	}
	return s
}

// Cache exposes the underlying cache so it can be registered for cleanup.
func (s *Summarizer) Cache() cache.Cleaner {
	if c, ok := s.cache.(cache.Cleaner); ok {
		return c
	}
	return nil
}

func userPrefix(userID string) string {
	return "summary:" + strconv.Quote(userID) + ":"
}

func cacheKey(userID string, p core.Period) string {
	return fmt.Sprintf("%s%d:%d", userPrefix(userID), p.Start.UnixMilli(), p.End.UnixMilli())
}

// Summarize totals income and expenses over p. Empty periods yield zeros.
func (s *Summarizer) Summarize(ctx context.Context, userID string, p core.Period) (core.Summary, error) {
	key := cacheKey(userID, p)
	if s.cache != nil {
		if sum, ok := s.cache.Get(key); ok {
			return sum, nil
		}
	}

	totals, err := s.store.SumByKind(ctx, userID, p.Start, p.End)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	byCategory, err := s.store.SumExpensesByCategory(ctx, userID, p.Start, p.End)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize by category: %w", err)
	}

	sum := core.Summary{
		UserID:           userID,
		Period:           p,
		Income:           totals.Income,
		Expenses:         totals.Expenses,
		Net:              totals.Income.Sub(totals.Expenses),
		TransactionCount: totals.IncomeCount + totals.ExpensesCount,
		ByCategory:       byCategory,
	}
	if s.cache != nil {
		s.cache.Set(key, sum)
	}
	return sum, nil
}

// SummarizeAt summarizes the period of granularity g that contains ts.
func (s *Summarizer) SummarizeAt(ctx context.Context, userID string, ts time.Time, g core.Granularity) (core.Summary, error) {
	return s.Summarize(ctx, userID, budget.PeriodFor(ts, g, s.loc))
}

// Invalidate drops every cached summary of the user.
func (s *Summarizer) Invalidate(userID string) {
	if s.cache != nil {
		s.cache.DeletePrefix(userPrefix(userID))
	}
}
