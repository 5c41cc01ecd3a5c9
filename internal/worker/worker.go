// Package worker holds the queue consumers run by the background worker
// process: categorization follow-ups and the alert sheet mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arsenis-cmd/BudgetBot/internal/amqp"
	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/sheets"
)

// Categorizer is implemented by services.Categorizer.
type Categorizer interface {
	Categorize(ctx context.Context, userID, txID string) (*core.Alert, error)
}

// CategorizeWorker turns categorize messages into categorization follow-ups.
type CategorizeWorker struct {
	categorizer Categorizer
}

func NewCategorizeWorker(c Categorizer) *CategorizeWorker {
	return &CategorizeWorker{categorizer: c}
}

// Handle is an amqp.Handler. Undecodable bodies are poison and dropped.
func (w *CategorizeWorker) Handle(ctx context.Context, body []byte) error {
	msg, err := amqp.CategorizeMessageFromJSON(body)
	if err != nil {
		return fmt.Errorf("decode categorize message: %w: %w", amqp.ErrPoison, err)
	}

	slog.InfoContext(ctx, "Processing categorize message",
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID)

	alert, err := w.categorizer.Categorize(ctx, msg.UserID, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("categorize %s: %w", msg.TransactionID, err)
	}
	if alert != nil {
		slog.InfoContext(ctx, "Categorization triggered alert",
			"transaction_id", msg.TransactionID,
			"alert_id", alert.ID,
			"severity", alert.Severity)
	}
	return nil
}

// AlertMirror appends each emitted alert to the alerts sheet.
type AlertMirror struct {
	writer sheets.AlertWriter
}

func NewAlertMirror(w sheets.AlertWriter) *AlertMirror {
	return &AlertMirror{writer: w}
}

// Handle is an amqp.Handler for alert notifications.
func (m *AlertMirror) Handle(ctx context.Context, body []byte) error {
	msg, err := amqp.AlertMessageFromJSON(body)
	if err != nil {
		return fmt.Errorf("decode alert message: %w: %w", amqp.ErrPoison, err)
	}
	return m.NotifyAlert(ctx, msg.Alert())
}

// NotifyAlert mirrors a directly, which lets the mirror act as the emitter's
// notifier when no broker is configured.
func (m *AlertMirror) NotifyAlert(ctx context.Context, a core.Alert) error {
	ref, err := m.writer.AppendAlert(ctx, a)
	if err != nil {
		return fmt.Errorf("mirror alert %s: %w", a.ID, err)
	}
	slog.InfoContext(ctx, "Alert mirrored",
		"alert_id", a.ID,
		"user_id", a.UserID,
		"severity", a.Severity,
		"row_ref", ref)
	return nil
}
