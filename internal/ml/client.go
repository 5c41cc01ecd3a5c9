// Package ml is the HTTP client for the external categorization,
// forecasting and recommendation service.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

const DefaultTimeout = 5 * time.Second

type (
	CategorizeRequest struct {
		Description string      `json:"description"`
		Amount      json.Number `json:"amount"`
		Type        core.Kind   `json:"type"`
	}

	// CategorizeResponse is advisory; Confidence is passed through unchecked.
	CategorizeResponse struct {
		CategoryID string  `json:"category_id,omitempty"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Method     string  `json:"method"`
	}

	HistoryItem struct {
		ID              string      `json:"id"`
		UserID          string      `json:"user_id"`
		Amount          json.Number `json:"amount"`
		CategoryID      string      `json:"category_id,omitempty"`
		Description     string      `json:"description"`
		TransactionDate string      `json:"transaction_date"`
	}

	ForecastRequest struct {
		UserID       string        `json:"user_id"`
		Transactions []HistoryItem `json:"transactions"`
	}

	DailyPrediction struct {
		Date            string          `json:"date"`
		PredictedAmount decimal.Decimal `json:"predicted_amount"`
		Confidence      string          `json:"confidence"`
	}

	ForecastResult struct {
		ForecastPeriod        string            `json:"forecast_period"`
		TotalPredictedExpense decimal.Decimal   `json:"total_predicted_expense"`
		DailyPredictions      []DailyPrediction `json:"daily_predictions"`
		AvgDailyExpense       decimal.Decimal   `json:"avg_daily_expense"`
		Trend                 string            `json:"trend"`
	}

	Recommendation struct {
		Type              string              `json:"type"`
		Category          string              `json:"category,omitempty"`
		Message           string              `json:"message"`
		Action            string              `json:"action,omitempty"`
		Priority          string              `json:"priority"`
		PotentialSavings  decimal.NullDecimal `json:"potential_savings"`
		RecommendedAmount decimal.NullDecimal `json:"recommended_amount"`
	}

	RecommendationSet struct {
		UserID          string           `json:"user_id"`
		Recommendations []Recommendation `json:"recommendations"`
		GeneratedAt     string           `json:"generated_at"`
	}
)

// Amount renders a decimal as a bare JSON number.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// Client talks to the ML service. It never retries: callers decide whether
// an ErrCollaboratorUnavailable is worth another attempt.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Categorize(ctx context.Context, req CategorizeRequest) (CategorizeResponse, error) {
	var out CategorizeResponse
	if err := c.do(ctx, http.MethodPost, "/categorize", req, &out); err != nil {
		return CategorizeResponse{}, err
	}
	if out.CategoryID == "" && strings.TrimSpace(out.Category) == "" {
		return CategorizeResponse{}, fmt.Errorf("categorize: empty category: %w", core.ErrCollaboratorRejected)
	}
	return out, nil
}

func (c *Client) Forecast(ctx context.Context, req ForecastRequest) (ForecastResult, error) {
	var out ForecastResult
	err := c.do(ctx, http.MethodPost, "/forecast", req, &out)
	return out, err
}

func (c *Client) Recommend(ctx context.Context, userID string) (RecommendationSet, error) {
	var out RecommendationSet
	err := c.do(ctx, http.MethodPost, "/recommend", map[string]string{"user_id": userID}, &out)
	return out, err
}

// Health reports whether the service answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// errorBody catches both FastAPI's {"detail": ...} and in-band {"error": ...} replies.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  any    `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", path, core.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %w", path, core.ErrCollaboratorUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, core.ErrCollaboratorUnavailable)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, core.ErrCollaboratorUnavailable)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s: status %d %s: %w", path, resp.StatusCode, describe(raw), core.ErrCollaboratorRejected)
	}

	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		return fmt.Errorf("%s: %s: %w", path, describe(raw), core.ErrCollaboratorRejected)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", path, core.ErrCollaboratorRejected, err)
	}
	return nil
}

func describe(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		return strings.TrimSpace(string(raw))
	}
	parts := make([]string, 0, 3)
	if eb.Error != "" {
		parts = append(parts, eb.Error)
	}
	if eb.Message != "" {
		parts = append(parts, eb.Message)
	}
	if eb.Detail != nil {
		parts = append(parts, fmt.Sprint(eb.Detail))
	}
	return strings.Join(parts, ": ")
}

// IsRetryable reports whether err is a transient collaborator failure.
func IsRetryable(err error) bool {
	return errors.Is(err, core.ErrCollaboratorUnavailable)
}
