package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

// CategorizeMessage asks a worker to categorize one stored transaction.
// It carries only identifiers; the worker reads the transaction itself.
type CategorizeMessage struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewCategorizeMessage(userID, txID string) *CategorizeMessage {
	return &CategorizeMessage{
		TransactionID: txID,
		UserID:        userID,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *CategorizeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CategorizeMessageFromJSON(data []byte) (*CategorizeMessage, error) {
	var msg CategorizeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" || msg.UserID == "" {
		return nil, fmt.Errorf("categorize message missing ids")
	}
	return &msg, nil
}

// AlertMessage is the notification published for every new alert. It is
// self-contained so consumers never need the alert store.
type AlertMessage struct {
	AlertID     string         `json:"alert_id"`
	UserID      string         `json:"user_id"`
	CategoryID  string         `json:"category_id"`
	GoalID      string         `json:"goal_id"`
	Type        core.AlertType `json:"type"`
	Severity    core.Severity  `json:"severity"`
	Message     string         `json:"message"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	CreatedAt   time.Time      `json:"created_at"`
}

func NewAlertMessage(a core.Alert) *AlertMessage {
	return &AlertMessage{
		AlertID:     a.ID,
		UserID:      a.UserID,
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

func (m *AlertMessage) Alert() core.Alert {
	return core.Alert{
		ID:          m.AlertID,
		UserID:      m.UserID,
		CategoryID:  m.CategoryID,
		GoalID:      m.GoalID,
		Type:        m.Type,
		Severity:    m.Severity,
		Message:     m.Message,
		PeriodStart: m.PeriodStart,
		PeriodEnd:   m.PeriodEnd,
		CreatedAt:   m.CreatedAt,
	}
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.AlertID == "" {
		return nil, fmt.Errorf("alert message missing id")
	}
	return &msg, nil
}
