// Package memory is an in-process storage.Store used by tests and by
// DATA_BACKEND=memory. Data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

// DefaultCategories mirrors the seed migration of the SQLite backend.
var DefaultCategories = []core.Category{
	{ID: "groceries", Name: "Groceries"},
	{ID: "dining", Name: "Dining"},
	{ID: "transportation", Name: "Transportation"},
	{ID: "entertainment", Name: "Entertainment"},
	{ID: "healthcare", Name: "Healthcare"},
	{ID: "utilities", Name: "Utilities"},
	{ID: "shopping", Name: "Shopping"},
	{ID: "rent-mortgage", Name: "Rent/Mortgage"},
	{ID: "other-income", Name: "Other Income"},
}

type alertKey struct {
	userID, categoryID string
	start, end         int64
	severity           core.Severity
}

type Store struct {
	mu     sync.RWMutex
	txs    []core.Transaction
	goals  []core.BudgetGoal
	alerts []core.Alert
	keys   map[alertKey]struct{}
	cats   []core.Category

	// failWith, when set, is returned by every call. Tests use it to
	// simulate an unavailable backend.
	failWith error
}

var _ storage.Store = (*Store)(nil)

func New(cats []core.Category) *Store {
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	return &Store{
		keys: make(map[alertKey]struct{}),
		cats: append([]core.Category(nil), cats...),
	}
}

// FailWith makes every subsequent call return err wrapped as storage unavailable.
// A nil err restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) fail(op string) error {
	if s.failWith == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorageUnavailable, s.failWith)
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fail("ping")
}

func (s *Store) Close() error { return nil }

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert transaction"); err != nil {
		return err
	}
	if tx.CategoryID != nil {
		c := *tx.CategoryID
		tx.CategoryID = &c
	}
	s.txs = append(s.txs, tx)
	return nil
}

func copyTx(tx core.Transaction) core.Transaction {
	if tx.CategoryID != nil {
		c := *tx.CategoryID
		tx.CategoryID = &c
	}
	return tx
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("get transaction"); err != nil {
		return core.Transaction{}, err
	}
	for _, tx := range s.txs {
		if tx.UserID == userID && tx.ID == id {
			return copyTx(tx), nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("list transactions"); err != nil {
		return nil, err
	}

	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.UserID != f.UserID {
			continue
		}
		if f.Kind != "" && tx.Kind != f.Kind {
			continue
		}
		if f.CategoryID != "" && (!tx.HasCategory() || *tx.CategoryID != f.CategoryID) {
			continue
		}
		if !f.From.IsZero() && tx.OccurredAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !tx.OccurredAt.Before(f.To) {
			continue
		}
		out = append(out, copyTx(tx))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("delete transaction"); err != nil {
		return err
	}
	for i, tx := range s.txs {
		if tx.UserID == userID && tx.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) SetTransactionCategory(_ context.Context, userID, id, categoryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("set transaction category"); err != nil {
		return false, err
	}
	for i := range s.txs {
		tx := &s.txs[i]
		if tx.UserID != userID || tx.ID != id {
			continue
		}
		if tx.CategoryID != nil {
			return false, nil
		}
		c := categoryID
		tx.CategoryID = &c
		return true, nil
	}
	return false, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func (s *Store) SumExpenses(_ context.Context, userID, categoryID string, start, end time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("sum expenses"); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, tx := range s.txs {
		if tx.UserID != userID || tx.Kind != core.Expense || !tx.HasCategory() || *tx.CategoryID != categoryID {
			continue
		}
		if inRange(tx.OccurredAt, start, end) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (s *Store) SumByKind(_ context.Context, userID string, start, end time.Time) (core.KindTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("sum by kind"); err != nil {
		return core.KindTotals{}, err
	}
	totals := core.KindTotals{Income: decimal.Zero, Expenses: decimal.Zero}
	for _, tx := range s.txs {
		if tx.UserID != userID || !inRange(tx.OccurredAt, start, end) {
			continue
		}
		switch tx.Kind {
		case core.Income:
			totals.Income = totals.Income.Add(tx.Amount)
			totals.IncomeCount++
		case core.Expense:
			totals.Expenses = totals.Expenses.Add(tx.Amount)
			totals.ExpensesCount++
		}
	}
	return totals, nil
}

func (s *Store) SumExpensesByCategory(_ context.Context, userID string, start, end time.Time) ([]core.CategoryAmount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("sum expenses by category"); err != nil {
		return nil, err
	}
	sums := map[string]decimal.Decimal{}
	for _, tx := range s.txs {
		if tx.UserID != userID || tx.Kind != core.Expense || !tx.HasCategory() || !inRange(tx.OccurredAt, start, end) {
			continue
		}
		sums[*tx.CategoryID] = sums[*tx.CategoryID].Add(tx.Amount)
	}

	out := make([]core.CategoryAmount, 0, len(sums))
	for id, amount := range sums {
		out = append(out, core.CategoryAmount{CategoryID: id, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (s *Store) InsertGoal(_ context.Context, g core.BudgetGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert goal"); err != nil {
		return err
	}
	s.goals = append(s.goals, g)
	return nil
}

// newestFirst sorts by CreatedAt descending; ties resolve to the later insert.
func newestFirst(in []core.BudgetGoal) []core.BudgetGoal {
	out := make([]core.BudgetGoal, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.BudgetGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("list goals"); err != nil {
		return nil, err
	}
	var out []core.BudgetGoal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return newestFirst(out), nil
}

func (s *Store) ActiveGoals(_ context.Context, userID, categoryID string) ([]core.BudgetGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("active goals"); err != nil {
		return nil, err
	}
	var out []core.BudgetGoal
	for _, g := range s.goals {
		if g.UserID == userID && g.CategoryID == categoryID && g.Active {
			out = append(out, g)
		}
	}
	return newestFirst(out), nil
}

func (s *Store) DeactivateGoal(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("deactivate goal"); err != nil {
		return err
	}
	for i := range s.goals {
		if s.goals[i].UserID == userID && s.goals[i].ID == id {
			s.goals[i].Active = false
			return nil
		}
	}
	return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
}

func keyOf(userID, categoryID string, start, end time.Time, sev core.Severity) alertKey {
	return alertKey{
		userID:     userID,
		categoryID: categoryID,
		start:      start.UnixMilli(),
		end:        end.UnixMilli(),
		severity:   sev,
	}
}

func (s *Store) InsertAlert(_ context.Context, a core.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert alert"); err != nil {
		return false, err
	}
	k := keyOf(a.UserID, a.CategoryID, a.PeriodStart, a.PeriodEnd, a.Severity)
	if _, dup := s.keys[k]; dup {
		return false, nil
	}
	if a.Severity == core.SeverityWarning {
		if _, ok := s.keys[keyOf(a.UserID, a.CategoryID, a.PeriodStart, a.PeriodEnd, core.SeverityCritical)]; ok {
			return false, nil
		}
	}
	s.keys[k] = struct{}{}
	s.alerts = append(s.alerts, a)
	return true, nil
}

func (s *Store) AlertExists(_ context.Context, userID, categoryID string, period core.Period, severity core.Severity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("alert exists"); err != nil {
		return false, err
	}
	_, ok := s.keys[keyOf(userID, categoryID, period.Start, period.End, severity)]
	return ok, nil
}

func (s *Store) ListAlerts(_ context.Context, userID string, limit int) ([]core.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("list alerts"); err != nil {
		return nil, err
	}
	var out []core.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].UserID == userID {
			out = append(out, s.alerts[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("list categories"); err != nil {
		return nil, err
	}
	out := append([]core.Category(nil), s.cats...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CategoryByName(_ context.Context, name string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail("category by name"); err != nil {
		return core.Category{}, err
	}
	for _, c := range s.cats {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
}
