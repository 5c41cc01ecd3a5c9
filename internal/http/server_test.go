package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/analytics"
	"github.com/arsenis-cmd/BudgetBot/internal/budget"
	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/forecast"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
	"github.com/arsenis-cmd/BudgetBot/internal/storage/memory"
)

type stubDispatcher struct{ calls int }

func (d *stubDispatcher) PublishCategorize(context.Context, string, string) error {
	d.calls++
	return nil
}

type stubInsights struct {
	forecast    ml.ForecastResult
	forecastErr error
	recs        ml.RecommendationSet
	recsErr     error
}

func (s stubInsights) Forecast(context.Context, string) (ml.ForecastResult, error) {
	return s.forecast, s.forecastErr
}

func (s stubInsights) Recommend(context.Context, string) (ml.RecommendationSet, error) {
	return s.recs, s.recsErr
}

func (s stubInsights) Insights(ctx context.Context, userID string) (forecast.Insights, error) {
	var out forecast.Insights
	if f, err := s.Forecast(ctx, userID); err != nil {
		out.ForecastErr = err
	} else {
		out.Forecast = &f
	}
	if r, err := s.Recommend(ctx, userID); err != nil {
		out.RecommendErr = err
	} else {
		out.Recommendations = &r
	}
	if out.ForecastErr != nil && out.RecommendErr != nil {
		return out, errors.Join(out.ForecastErr, out.RecommendErr)
	}
	return out, nil
}

type testServer struct {
	srv        *Server
	store      *memory.Store
	dispatcher *stubDispatcher
}

func newTestServer(t *testing.T, insights InsightService, opts Options) *testServer {
	t.Helper()
	store := memory.New(nil)
	summarizer := analytics.NewSummarizer(store, time.UTC, 100, time.Minute)
	dispatcher := &stubDispatcher{}
	txs := services.NewTransactionService(store, budget.NewEmitter(store, budget.DefaultPolicy()), summarizer, dispatcher)
	if insights == nil {
		insights = stubInsights{}
	}
	srv := NewServer(":0", Deps{
		Transactions: txs,
		Goals:        services.NewGoalService(store),
		Summaries:    summarizer,
		Insights:     insights,
		Checks:       map[string]Check{"storage": store.Ping},
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, store: store, dispatcher: dispatcher}
}

func (ts *testServer) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(headerUserID, user)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	if rr := ts.do(t, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}
	rr := ts.do(t, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d: %s", rr.Code, rr.Body)
	}
	if got := decode[readyResponse](t, rr); got.Checks["storage"] != "ok" {
		t.Fatalf("checks = %v", got.Checks)
	}

	ts.store.FailWith(errors.New("disk gone"))
	rr = ts.do(t, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store = %d", rr.Code)
	}
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	ts := newTestServer(t, nil, Options{})
	rr := ts.do(t, http.MethodGet, "/api/v1/transactions", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode[errorResponse](t, rr)
	if body.Error.Code != "unauthenticated" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}

func TestCreateTransactionEmitsWarning(t *testing.T) {
	ts := newTestServer(t, nil, Options{})

	rr := ts.do(t, http.MethodPost, "/api/v1/goals", "u1", `{"category_id":"groceries","amount":500}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("set goal = %d: %s", rr.Code, rr.Body)
	}

	rr = ts.do(t, http.MethodPost, "/api/v1/transactions", "u1",
		`{"amount":"420,00","type":"expense","category_id":"groceries","description":"weekly shop","transaction_date":"2025-03-12"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rr.Code, rr.Body)
	}
	got := decode[createTransactionResponse](t, rr)
	if got.Transaction.Amount.String() != "420.00" {
		t.Fatalf("amount = %s", got.Transaction.Amount)
	}
	if got.Alert == nil || got.Alert.Severity != core.SeverityWarning {
		t.Fatalf("expected warning alert, got %+v", got.Alert)
	}
	if got.CategorizationQueued {
		t.Fatal("categorized transaction must not be queued")
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/transactions/"+got.Transaction.ID {
		t.Fatalf("Location = %q", loc)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/alerts?limit=5", "u1", "")
	alerts := decode[listResponse[alertDTO]](t, rr)
	if len(alerts.Items) != 1 {
		t.Fatalf("alerts = %+v", alerts.Items)
	}
}

func TestCreateUncategorizedQueuesCategorization(t *testing.T) {
	ts := newTestServer(t, nil, Options{})
	rr := ts.do(t, http.MethodPost, "/api/v1/transactions", "u1", `{"amount":12.5,"type":"expense","description":"Starbucks"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rr.Code, rr.Body)
	}
	got := decode[createTransactionResponse](t, rr)
	if !got.CategorizationQueued || ts.dispatcher.calls != 1 {
		t.Fatalf("queued=%v calls=%d", got.CategorizationQueued, ts.dispatcher.calls)
	}
	if got.Transaction.CategoryID != nil || got.Alert != nil {
		t.Fatalf("unexpected category or alert: %+v", got)
	}
}

func TestCreateTransactionRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"negative amount", `{"amount":-5,"type":"expense"}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"amount":"0","type":"expense"}`, http.StatusUnprocessableEntity},
		{"missing amount", `{"type":"expense"}`, http.StatusUnprocessableEntity},
		{"bad kind", `{"amount":5,"type":"transfer"}`, http.StatusUnprocessableEntity},
		{"missing kind", `{"amount":5}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"amount":5,"type":"expense","category_id":"yachts"}`, http.StatusUnprocessableEntity},
		{"long description", fmt.Sprintf(`{"amount":5,"type":"expense","description":%q}`, strings.Repeat("x", 201)), http.StatusUnprocessableEntity},
		{"bad source", `{"amount":5,"type":"expense","source":"telepathy"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"amount":5,"type":"expense","transaction_date":"12/03/2025"}`, http.StatusBadRequest},
		{"unknown field", `{"amount":5,"type":"expense","colour":"red"}`, http.StatusBadRequest},
		{"not json", `amount=5`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil, Options{})
			rr := ts.do(t, http.MethodPost, "/api/v1/transactions", "u1", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.status, rr.Body)
			}
		})
	}
}

func TestTransactionGetListDelete(t *testing.T) {
	ts := newTestServer(t, nil, Options{})
	rr := ts.do(t, http.MethodPost, "/api/v1/transactions", "u1",
		`{"amount":30,"type":"income","description":"refund","transaction_date":"2025-03-02"}`)
	created := decode[createTransactionResponse](t, rr)
	id := created.Transaction.ID

	if rr := ts.do(t, http.MethodGet, "/api/v1/transactions/"+id, "u2", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("other user's transaction = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/v1/transactions/"+id, "u1", ""); rr.Code != http.StatusOK {
		t.Fatalf("get = %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/transactions?kind=income&from=2025-03-01&to=2025-03-02", "u1", "")
	list := decode[listResponse[transactionDTO]](t, rr)
	if len(list.Items) != 1 {
		t.Fatalf("list = %d items", len(list.Items))
	}
	rr = ts.do(t, http.MethodGet, "/api/v1/transactions?kind=expense", "u1", "")
	if list := decode[listResponse[transactionDTO]](t, rr); len(list.Items) != 0 {
		t.Fatalf("expense filter returned %d items", len(list.Items))
	}
	if rr := ts.do(t, http.MethodGet, "/api/v1/transactions?limit=zero", "u1", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit = %d", rr.Code)
	}

	if rr := ts.do(t, http.MethodDelete, "/api/v1/transactions/"+id, "u1", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodDelete, "/api/v1/transactions/"+id, "u1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rr.Code)
	}
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t, nil, Options{})
	for _, body := range []string{
		`{"amount":100,"type":"expense","category_id":"dining","transaction_date":"2025-03-03"}`,
		`{"amount":50.25,"type":"expense","category_id":"groceries","transaction_date":"2025-03-20"}`,
		`{"amount":1000,"type":"income","category_id":"other-income","transaction_date":"2025-03-01"}`,
		`{"amount":999,"type":"expense","category_id":"dining","transaction_date":"2025-04-01"}`,
	} {
		if rr := ts.do(t, http.MethodPost, "/api/v1/transactions", "u1", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed = %d: %s", rr.Code, rr.Body)
		}
	}

	rr := ts.do(t, http.MethodGet, "/api/v1/summary?granularity=month&date=2025-03-15", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary = %d: %s", rr.Code, rr.Body)
	}
	got := decode[summaryDTO](t, rr)
	if got.Expenses.String() != "150.25" || got.Income.String() != "1000.00" || got.Net.String() != "849.75" {
		t.Fatalf("summary = %+v", got)
	}
	if got.TransactionCount != 3 {
		t.Fatalf("count = %d", got.TransactionCount)
	}

	if rr := ts.do(t, http.MethodGet, "/api/v1/summary?granularity=year", "u1", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad granularity = %d", rr.Code)
	}
}

func TestGoals(t *testing.T) {
	ts := newTestServer(t, nil, Options{})
	first := decode[goalDTO](t, ts.do(t, http.MethodPost, "/api/v1/goals", "u1", `{"category_id":"dining","amount":"200"}`))
	second := decode[goalDTO](t, ts.do(t, http.MethodPost, "/api/v1/goals", "u1", `{"category_id":"dining","amount":"250","granularity":"month"}`))
	if first.ID == second.ID || second.Amount.String() != "250.00" {
		t.Fatalf("goals = %+v %+v", first, second)
	}

	active := decode[listResponse[goalDTO]](t, ts.do(t, http.MethodGet, "/api/v1/goals?active=true", "u1", ""))
	if len(active.Items) != 1 || active.Items[0].ID != second.ID {
		t.Fatalf("active goals = %+v", active.Items)
	}

	if rr := ts.do(t, http.MethodDelete, "/api/v1/goals/"+second.ID, "u1", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/v1/goals", "u1", `{"category_id":"dining","amount":0}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero goal = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/v1/goals", "u1", `{"category_id":"dining","amount":10,"granularity":"day"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad granularity = %d", rr.Code)
	}
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t, nil, Options{})
	rr := ts.do(t, http.MethodGet, "/api/v1/categories", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("categories = %d", rr.Code)
	}
	if got := decode[listResponse[categoryDTO]](t, rr); len(got.Items) != len(memory.DefaultCategories) {
		t.Fatalf("got %d categories", len(got.Items))
	}
}

func TestCollaboratorErrorsMapToStatus(t *testing.T) {
	unavailable := fmt.Errorf("forecast: %w: timeout", core.ErrCollaboratorUnavailable)
	rejected := fmt.Errorf("recommend: %w: insufficient data", core.ErrCollaboratorRejected)
	ts := newTestServer(t, stubInsights{forecastErr: unavailable, recsErr: rejected}, Options{})

	rr := ts.do(t, http.MethodGet, "/api/v1/forecast", "u1", "")
	if rr.Code != http.StatusServiceUnavailable || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("forecast = %d", rr.Code)
	}
	if body := decode[errorResponse](t, rr); strings.Contains(body.Error.Message, "timeout") {
		t.Fatalf("internal detail leaked: %q", body.Error.Message)
	}
	if rr := ts.do(t, http.MethodGet, "/api/v1/recommendations", "u1", ""); rr.Code != http.StatusBadGateway {
		t.Fatalf("recommendations = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/v1/insights", "u1", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("insights with both failing = %d", rr.Code)
	}
}

func TestInsightsPartialSuccess(t *testing.T) {
	rejected := fmt.Errorf("recommend: %w", core.ErrCollaboratorRejected)
	ts := newTestServer(t, stubInsights{forecast: ml.ForecastResult{Trend: "stable"}, recsErr: rejected}, Options{})

	rr := ts.do(t, http.MethodGet, "/api/v1/insights", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("insights = %d: %s", rr.Code, rr.Body)
	}
	got := decode[insightsResponse](t, rr)
	if got.Forecast == nil || got.Forecast.Trend != "stable" {
		t.Fatalf("forecast = %+v", got.Forecast)
	}
	if got.Recommendations != nil || got.RecommendationsError == nil || got.RecommendationsError.Code != "collaborator_rejected" {
		t.Fatalf("recommendations = %+v err=%+v", got.Recommendations, got.RecommendationsError)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	ts := newTestServer(t, nil, Options{RateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		if rr := ts.do(t, http.MethodGet, "/api/v1/goals", "u1", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rr.Code)
		}
	}
	if rr := ts.do(t, http.MethodGet, "/api/v1/goals", "u1", ""); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/v1/goals", "u2", ""); rr.Code != http.StatusOK {
		t.Fatalf("other user = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/healthz", "u1", ""); rr.Code != http.StatusOK {
		t.Fatalf("health is not rate limited, got %d", rr.Code)
	}
}

func TestResponsesCarrySecurityHeadersAndRequestID(t *testing.T) {
	ts := newTestServer(t, nil, Options{})
	rr := ts.do(t, http.MethodGet, "/nowhere", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown route = %d", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff header")
	}
	body := decode[errorResponse](t, rr)
	if body.RequestID == "" || body.RequestID != rr.Header().Get("X-Request-ID") {
		t.Fatalf("request id body=%q header=%q", body.RequestID, rr.Header().Get("X-Request-ID"))
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	ts := newTestServer(t, nil, Options{RateLimitPerMinute: 10})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ts.srv.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := ts.srv.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
