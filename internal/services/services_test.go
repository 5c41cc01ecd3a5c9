package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/budget"
	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
	"github.com/arsenis-cmd/BudgetBot/internal/storage/memory"
)

var march = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *recordingDispatcher) PublishCategorize(_ context.Context, userID, txID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, userID+"/"+txID)
	return d.err
}

type countingInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (c *countingInvalidator) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, userID)
}

type fakeGuesser struct {
	resp  ml.CategorizeResponse
	err   error
	block bool
	calls int
}

func (g *fakeGuesser) Categorize(ctx context.Context, _ ml.CategorizeRequest) (ml.CategorizeResponse, error) {
	g.calls++
	if g.block {
		<-ctx.Done()
		return ml.CategorizeResponse{}, fmt.Errorf("categorize: %w: %w", core.ErrCollaboratorUnavailable, ctx.Err())
	}
	return g.resp, g.err
}

type harness struct {
	store      *memory.Store
	emitter    *budget.Emitter
	cache      *countingInvalidator
	dispatcher *recordingDispatcher
	txs        *TransactionService
	goals      *GoalService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New(nil)
	h := &harness{
		store:      store,
		emitter:    budget.NewEmitter(store, budget.DefaultPolicy()),
		cache:      &countingInvalidator{},
		dispatcher: &recordingDispatcher{},
		goals:      NewGoalService(store),
	}
	h.txs = NewTransactionService(store, h.emitter, h.cache, h.dispatcher)
	return h
}

func (h *harness) setGoal(t *testing.T, category, amount string) core.BudgetGoal {
	t.Helper()
	g, err := h.goals.Set(context.Background(), GoalInput{
		UserID: "u1", CategoryID: category, Amount: decimal.RequireFromString(amount), Granularity: core.Month,
	})
	if err != nil {
		t.Fatalf("Set goal: %v", err)
	}
	return g
}

func expense(amount, category, description string) TransactionInput {
	return TransactionInput{
		UserID:      "u1",
		Amount:      decimal.RequireFromString(amount),
		Kind:        core.Expense,
		CategoryID:  category,
		Description: description,
		OccurredAt:  march,
	}
}

func TestCreate_CategorizedExpenseEvaluatesBudget(t *testing.T) {
	h := newHarness(t)
	h.setGoal(t, "dining", "100")
	ctx := context.Background()

	res, err := h.txs.Create(ctx, expense("50", "dining", "lunch"))
	if err != nil || res.Alert != nil {
		t.Fatalf("first expense: alert=%v err=%v", res.Alert, err)
	}
	res, err = h.txs.Create(ctx, expense("30", "dining", "dinner"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Alert == nil || res.Alert.Severity != core.SeverityWarning {
		t.Fatalf("expected warning alert, got %+v", res.Alert)
	}
	if res.CategorizationQueued || len(h.dispatcher.calls) != 0 {
		t.Fatal("categorized transaction must not be dispatched")
	}
	if len(h.cache.users) != 2 {
		t.Fatalf("expected cache invalidated per write, got %v", h.cache.users)
	}
	if res.Transaction.Source != core.SourceManual {
		t.Fatalf("default source = %q", res.Transaction.Source)
	}
}

func TestCreate_UncategorizedIsDispatched(t *testing.T) {
	h := newHarness(t)
	res, err := h.txs.Create(context.Background(), expense("12.50", "", "Starbucks"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !res.CategorizationQueued {
		t.Fatal("expected categorization to be queued")
	}
	want := "u1/" + res.Transaction.ID
	if len(h.dispatcher.calls) != 1 || h.dispatcher.calls[0] != want {
		t.Fatalf("dispatch calls = %v", h.dispatcher.calls)
	}
}

func TestCreate_DispatchFailureKeepsTransaction(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.err = errors.New("broker down")

	res, err := h.txs.Create(context.Background(), expense("9", "", "bus"))
	if err != nil {
		t.Fatalf("dispatch failure must not fail the write: %v", err)
	}
	if res.CategorizationQueued {
		t.Fatal("queued must be false when dispatch failed")
	}
	if _, err := h.txs.Get(context.Background(), "u1", res.Transaction.ID); err != nil {
		t.Fatalf("transaction not stored: %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		in   TransactionInput
		want error
	}{
		{"zero amount", expense("0", "", "x"), core.ErrInvalidAmount},
		{"negative amount", expense("-4", "", "x"), core.ErrInvalidAmount},
		{"unknown category", expense("4", "casino", "x"), ErrUnknownCategory},
		{"missing user", TransactionInput{Amount: decimal.NewFromInt(1), Kind: core.Expense}, core.ErrEmptyUser},
		{"bad kind", TransactionInput{UserID: "u1", Amount: decimal.NewFromInt(1), Kind: "refund"}, core.ErrInvalidKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.txs.Create(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if got, _ := h.store.ListTransactions(context.Background(), storage.TransactionFilter{UserID: "u1"}); len(got) != 0 {
		t.Fatalf("invalid input stored %d transactions", len(got))
	}
}

func TestCreate_StorageFailure(t *testing.T) {
	h := newHarness(t)
	h.store.FailWith(errors.New("disk gone"))
	_, err := h.txs.Create(context.Background(), expense("5", "", "x"))
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if len(h.dispatcher.calls) != 0 {
		t.Fatal("nothing may be dispatched for an unsaved transaction")
	}
}

func TestDeleteInvalidatesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.txs.Create(ctx, expense("5", "dining", "x"))
	before := len(h.cache.users)

	if err := h.txs.Delete(ctx, "u1", res.Transaction.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(h.cache.users) != before+1 {
		t.Fatal("delete must invalidate cached summaries")
	}
	if err := h.txs.Delete(ctx, "u1", res.Transaction.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestGoalSetSupersedesPrevious(t *testing.T) {
	h := newHarness(t)
	first := h.setGoal(t, "dining", "100")
	second := h.setGoal(t, "dining", "250")

	active, err := h.store.ActiveGoals(context.Background(), "u1", "dining")
	if err != nil {
		t.Fatalf("ActiveGoals: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("expected only %s active, got %+v (first %s)", second.ID, active, first.ID)
	}

	all, _ := h.goals.List(context.Background(), "u1")
	if len(all) != 2 {
		t.Fatalf("expected both goals listed, got %d", len(all))
	}
}

func TestGoalSetValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.goals.Set(ctx, GoalInput{UserID: "u1", CategoryID: "nope", Amount: decimal.NewFromInt(10)})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected unknown category, got %v", err)
	}
	_, err = h.goals.Set(ctx, GoalInput{UserID: "u1", CategoryID: "dining", Amount: decimal.Zero})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	_, err = h.goals.Set(ctx, GoalInput{UserID: "u1", CategoryID: "dining", Amount: decimal.NewFromInt(1), Granularity: "year"})
	if !errors.Is(err, core.ErrInvalidGranularity) {
		t.Fatalf("expected invalid granularity, got %v", err)
	}
}

func TestCategorize_AssignsAndEvaluates(t *testing.T) {
	h := newHarness(t)
	h.setGoal(t, "dining", "100")
	ctx := context.Background()
	h.txs.Create(ctx, expense("85", "dining", "dinner"))
	res, _ := h.txs.Create(ctx, expense("20", "", "Starbucks"))

	guesser := &fakeGuesser{resp: ml.CategorizeResponse{Category: "Dining", Confidence: 0.85, Method: "keyword_matching"}}
	c := NewCategorizer(h.store, guesser, h.emitter, h.cache, time.Second)

	alert, err := c.Categorize(ctx, "u1", res.Transaction.ID)
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	if alert == nil || alert.Severity != core.SeverityCritical {
		t.Fatalf("expected critical alert after categorization, got %+v", alert)
	}
	tx, _ := h.txs.Get(ctx, "u1", res.Transaction.ID)
	if !tx.HasCategory() || *tx.CategoryID != "dining" {
		t.Fatalf("category not stored: %+v", tx.CategoryID)
	}

	// Already categorized: no second collaborator call.
	if _, err := c.Categorize(ctx, "u1", res.Transaction.ID); err != nil {
		t.Fatalf("repeat Categorize: %v", err)
	}
	if guesser.calls != 1 {
		t.Fatalf("collaborator called %d times", guesser.calls)
	}
}

func TestCategorize_TimeoutLeavesCategoryNull(t *testing.T) {
	h := newHarness(t)
	h.setGoal(t, "dining", "10")
	ctx := context.Background()
	res, _ := h.txs.Create(ctx, expense("50", "", "Starbucks"))

	c := NewCategorizer(h.store, &fakeGuesser{block: true}, h.emitter, h.cache, 20*time.Millisecond)
	alert, err := c.Categorize(ctx, "u1", res.Transaction.ID)
	if err != nil {
		t.Fatalf("timeout must not be fatal: %v", err)
	}
	if alert != nil {
		t.Fatal("no alert may be evaluated without a category")
	}
	tx, _ := h.txs.Get(ctx, "u1", res.Transaction.ID)
	if tx.HasCategory() {
		t.Fatalf("category must stay null, got %q", *tx.CategoryID)
	}
	if alerts, _ := h.store.ListAlerts(ctx, "u1", 10); len(alerts) != 0 {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
}

func TestCategorize_UnknownCategory(t *testing.T) {
	tests := []struct {
		name string
		resp ml.CategorizeResponse
		want string
	}{
		{"unknown name", ml.CategorizeResponse{Category: "Crypto"}, ""},
		{"unknown id", ml.CategorizeResponse{Category: "Crypto", CategoryID: "crypto"}, ""},
		{"known id", ml.CategorizeResponse{Category: "Dining", CategoryID: "dining"}, "dining"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			res, _ := h.txs.Create(ctx, expense("5", "", "mystery"))

			c := NewCategorizer(h.store, &fakeGuesser{resp: tt.resp}, h.emitter, h.cache, time.Second)
			if _, err := c.Categorize(ctx, "u1", res.Transaction.ID); err != nil {
				t.Fatalf("Categorize: %v", err)
			}
			tx, _ := h.txs.Get(ctx, "u1", res.Transaction.ID)
			got := ""
			if tx.HasCategory() {
				got = *tx.CategoryID
			}
			if got != tt.want {
				t.Fatalf("stored category = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategorize_DeletedTransaction(t *testing.T) {
	h := newHarness(t)
	guesser := &fakeGuesser{resp: ml.CategorizeResponse{Category: "Dining"}}
	c := NewCategorizer(h.store, guesser, h.emitter, h.cache, time.Second)
	if _, err := c.Categorize(context.Background(), "u1", "gone"); err != nil {
		t.Fatalf("missing transaction must be skipped: %v", err)
	}
	if guesser.calls != 0 {
		t.Fatal("collaborator must not be called for a missing transaction")
	}
}

func TestCategorize_StorageFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.store.FailWith(errors.New("locked"))
	c := NewCategorizer(h.store, &fakeGuesser{}, h.emitter, h.cache, time.Second)
	if _, err := c.Categorize(context.Background(), "u1", "t1"); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
