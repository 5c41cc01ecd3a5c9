// Package adapters bridges services whose method shapes differ from the
// ports that drive them.
package adapters

import (
	"context"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
)

type Categorizer interface {
	Categorize(ctx context.Context, userID, txID string) (*core.Alert, error)
}

// CategorizeFunc adapts a Categorizer to the in-process pool, logging any
// alert the follow-up emitted.
func CategorizeFunc(c Categorizer) services.CategorizeFunc {
	return func(ctx context.Context, userID, txID string) error {
		alert, err := c.Categorize(ctx, userID, txID)
		if err != nil {
			return err
		}
		if alert != nil {
			log.FromContext(ctx).InfoContext(ctx, "Categorization follow-up emitted alert",
				log.FieldTxID, txID,
				log.FieldUserID, userID,
				log.FieldAlertID, alert.ID,
				log.FieldSeverity, alert.Severity)
		}
		return nil
	}
}
