package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
)

// money renders amounts as bare JSON numbers with two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type categoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type transactionDTO struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Amount          json.Number `json:"amount"`
	Type            core.Kind   `json:"type"`
	CategoryID      *string     `json:"category_id"`
	Description     string      `json:"description"`
	TransactionDate time.Time   `json:"transaction_date"`
	Source          core.Source `json:"source"`
	CreatedAt       time.Time   `json:"created_at"`
}

func newTransactionDTO(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:              tx.ID,
		UserID:          tx.UserID,
		Amount:          money(tx.Amount),
		Type:            tx.Kind,
		CategoryID:      tx.CategoryID,
		Description:     tx.Description,
		TransactionDate: tx.OccurredAt,
		Source:          tx.Source,
		CreatedAt:       tx.CreatedAt,
	}
}

type goalDTO struct {
	ID          string           `json:"id"`
	CategoryID  string           `json:"category_id"`
	Amount      json.Number      `json:"amount"`
	Granularity core.Granularity `json:"granularity"`
	Active      bool             `json:"active"`
	CreatedAt   time.Time        `json:"created_at"`
}

func newGoalDTO(g core.BudgetGoal) goalDTO {
	return goalDTO{
		ID:          g.ID,
		CategoryID:  g.CategoryID,
		Amount:      money(g.Amount),
		Granularity: g.Granularity,
		Active:      g.Active,
		CreatedAt:   g.CreatedAt,
	}
}

type alertDTO struct {
	ID          string         `json:"id"`
	CategoryID  string         `json:"category_id"`
	GoalID      string         `json:"goal_id"`
	Type        core.AlertType `json:"type"`
	Severity    core.Severity  `json:"severity"`
	Message     string         `json:"message"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	CreatedAt   time.Time      `json:"created_at"`
}

func newAlertDTO(a core.Alert) alertDTO {
	return alertDTO{
		ID:          a.ID,
		CategoryID:  a.CategoryID,
		GoalID:      a.GoalID,
		Type:        a.Type,
		Severity:    a.Severity,
		Message:     a.Message,
		PeriodStart: a.PeriodStart,
		PeriodEnd:   a.PeriodEnd,
		CreatedAt:   a.CreatedAt,
	}
}

type createTransactionResponse struct {
	Transaction          transactionDTO `json:"transaction"`
	Alert                *alertDTO      `json:"alert"`
	CategorizationQueued bool           `json:"categorization_queued"`
}

type categoryAmountDTO struct {
	CategoryID string      `json:"category_id"`
	Amount     json.Number `json:"amount"`
}

type summaryDTO struct {
	Granularity      core.Granularity    `json:"granularity"`
	PeriodStart      time.Time           `json:"period_start"`
	PeriodEnd        time.Time           `json:"period_end"`
	Income           json.Number         `json:"income"`
	Expenses         json.Number         `json:"expenses"`
	Net              json.Number         `json:"net"`
	TransactionCount int64               `json:"transaction_count"`
	ByCategory       []categoryAmountDTO `json:"by_category"`
}

func newSummaryDTO(s core.Summary) summaryDTO {
	out := summaryDTO{
		Granularity:      s.Period.Granularity,
		PeriodStart:      s.Period.Start,
		PeriodEnd:        s.Period.End,
		Income:           money(s.Income),
		Expenses:         money(s.Expenses),
		Net:              money(s.Net),
		TransactionCount: s.TransactionCount,
		ByCategory:       make([]categoryAmountDTO, len(s.ByCategory)),
	}
	for i, c := range s.ByCategory {
		out.ByCategory[i] = categoryAmountDTO{CategoryID: c.CategoryID, Amount: money(c.Amount)}
	}
	return out
}

type insightsResponse struct {
	Forecast             *ml.ForecastResult    `json:"forecast"`
	Recommendations      *ml.RecommendationSet `json:"recommendations"`
	ForecastError        *errorBody            `json:"forecast_error,omitempty"`
	RecommendationsError *errorBody            `json:"recommendations_error,omitempty"`
}
