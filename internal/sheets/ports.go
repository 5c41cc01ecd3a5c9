package sheets

import (
	"context"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

// Ports for outbound adapters.
type (
	// AlertWriter mirrors emitted alerts to an external sheet.
	AlertWriter interface {
		AppendAlert(ctx context.Context, a core.Alert) (rowRef string, err error)
	}
)
