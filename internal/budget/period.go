// Package budget holds the budget tracking and alert engine: period
// boundaries, spend aggregation, severity evaluation and alert emission.
package budget

import (
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

// PeriodFor maps ts to the half-open period of the given granularity that
// contains it, with boundaries at local midnight in loc. A nil loc means UTC.
// Unknown granularities fall back to month.
func PeriodFor(ts time.Time, g core.Granularity, loc *time.Location) core.Period {
	if loc == nil {
		loc = time.UTC
	}
	local := ts.In(loc)
	y, m, d := local.Date()

	if g == core.Week {
		sinceMonday := (int(local.Weekday()) + 6) % 7
		start := time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, loc)
		return core.Period{Start: start, End: start.AddDate(0, 0, 7), Granularity: core.Week}
	}

	start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	return core.Period{Start: start, End: start.AddDate(0, 1, 0), Granularity: core.Month}
}
