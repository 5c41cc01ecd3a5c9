package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

// Column order of the alerts sheet.
var alertColumns = []string{"Created", "Period Start", "Period End", "User", "Category", "Severity", "Message", "Alert ID"}

func alertRow(a core.Alert) []any {
	return []any{
		a.CreatedAt.UTC().Format(time.RFC3339),
		a.PeriodStart.Format(time.DateOnly),
		a.PeriodEnd.Format(time.DateOnly),
		a.UserID,
		a.CategoryID,
		string(a.Severity),
		a.Message,
		a.ID,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
