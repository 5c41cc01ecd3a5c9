package forecast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
	"github.com/arsenis-cmd/BudgetBot/internal/storage/memory"
)

type fakeML struct {
	mu           sync.Mutex
	lastReq      ml.ForecastRequest
	forecastErr  error
	recommendErr error
	block        bool
}

func (f *fakeML) Forecast(ctx context.Context, req ml.ForecastRequest) (ml.ForecastResult, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ml.ForecastResult{}, ctx.Err()
	}
	if f.forecastErr != nil {
		return ml.ForecastResult{}, f.forecastErr
	}
	return ml.ForecastResult{ForecastPeriod: "30_days", Trend: "increasing"}, nil
}

func (f *fakeML) Recommend(ctx context.Context, userID string) (ml.RecommendationSet, error) {
	if f.recommendErr != nil {
		return ml.RecommendationSet{}, f.recommendErr
	}
	return ml.RecommendationSet{UserID: userID, Recommendations: []ml.Recommendation{{Type: "optimization"}}}, nil
}

func seed(t *testing.T, s *memory.Store, n int, kind core.Kind) {
	t.Helper()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		tx := core.Transaction{
			ID: uuid.NewString(), UserID: "u1", Amount: decimal.NewFromInt(int64(i + 1)),
			Kind: kind, OccurredAt: at, Source: core.SourceImported, CreatedAt: at,
		}
		if err := s.InsertTransaction(context.Background(), tx); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPayloadIsBoundedAndNewestFirst(t *testing.T) {
	store := memory.New(nil)
	seed(t, store, 400, core.Expense)
	seed(t, store, 10, core.Income)

	o := NewOrchestrator(&fakeML{}, store, Config{})
	req, err := o.Payload(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if len(req.Transactions) != DefaultHistoryLimit {
		t.Fatalf("payload has %d items, want %d", len(req.Transactions), DefaultHistoryLimit)
	}
	if req.Transactions[0].Amount != "400.00" {
		t.Fatalf("first item must be the most recent expense, got %s", req.Transactions[0].Amount)
	}
	for i := 1; i < len(req.Transactions); i++ {
		if req.Transactions[i-1].TransactionDate < req.Transactions[i].TransactionDate {
			t.Fatalf("payload not ordered newest first at %d", i)
		}
	}
}

func TestForecastTimeoutIsUnavailable(t *testing.T) {
	store := memory.New(nil)
	seed(t, store, 3, core.Expense)
	o := NewOrchestrator(&fakeML{block: true}, store, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := o.Forecast(context.Background(), "u1")
	if !errors.Is(err, core.ErrCollaboratorUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout was not applied")
	}
}

func TestForecastPassesRejection(t *testing.T) {
	store := memory.New(nil)
	o := NewOrchestrator(&fakeML{forecastErr: core.ErrCollaboratorRejected}, store, Config{})
	_, err := o.Forecast(context.Background(), "u1")
	if !errors.Is(err, core.ErrCollaboratorRejected) || errors.Is(err, core.ErrCollaboratorUnavailable) {
		t.Fatalf("expected rejected only, got %v", err)
	}
}

func TestForecastHistoryFailure(t *testing.T) {
	store := memory.New(nil)
	store.FailWith(errors.New("locked"))
	fake := &fakeML{}
	o := NewOrchestrator(fake, store, Config{})

	_, err := o.Forecast(context.Background(), "u1")
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if fake.lastReq.UserID != "" {
		t.Fatal("collaborator must not be called without history")
	}
}

func TestInsightsPartialResults(t *testing.T) {
	store := memory.New(nil)
	seed(t, store, 2, core.Expense)

	o := NewOrchestrator(&fakeML{forecastErr: errors.New("connection refused")}, store, Config{})
	in, err := o.Insights(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if in.Forecast != nil || !errors.Is(in.ForecastErr, core.ErrCollaboratorUnavailable) {
		t.Fatalf("forecast part = %+v / %v", in.Forecast, in.ForecastErr)
	}
	if in.Recommendations == nil || len(in.Recommendations.Recommendations) != 1 {
		t.Fatalf("recommendations missing: %+v", in.Recommendations)
	}

	o = NewOrchestrator(&fakeML{forecastErr: core.ErrCollaboratorRejected, recommendErr: core.ErrCollaboratorUnavailable}, store, Config{})
	if _, err := o.Insights(context.Background(), "u1"); err == nil {
		t.Fatal("expected error when both calls fail")
	}
}
