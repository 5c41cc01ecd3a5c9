package budget

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

// Policy holds the severity thresholds as fractions of the goal amount.
type Policy struct {
	WarningRatio  float64
	CriticalRatio float64
}

func DefaultPolicy() Policy {
	return Policy{WarningRatio: 0.8, CriticalRatio: 1.0}
}

func (p Policy) Validate() error {
	if p.WarningRatio <= 0 {
		return fmt.Errorf("warning ratio must be positive, got %v", p.WarningRatio)
	}
	if p.CriticalRatio < p.WarningRatio {
		return fmt.Errorf("critical ratio %v must not be below warning ratio %v", p.CriticalRatio, p.WarningRatio)
	}
	return nil
}

// Evaluator maps spend against a goal to a severity. It is stateless.
type Evaluator struct {
	warning  decimal.Decimal
	critical decimal.Decimal
}

func NewEvaluator(p Policy) *Evaluator {
	return &Evaluator{
		warning:  decimal.NewFromFloat(p.WarningRatio),
		critical: decimal.NewFromFloat(p.CriticalRatio),
	}
}

func (e *Evaluator) Evaluate(spend decimal.Decimal, goal core.BudgetGoal) (core.BudgetStatus, error) {
	if !goal.Amount.IsPositive() {
		return core.BudgetStatus{}, fmt.Errorf("goal %s amount %s: %w", goal.ID, goal.Amount, core.ErrInvalidGoal)
	}

	ratio := spend.Div(goal.Amount)
	status := core.BudgetStatus{
		GoalID:       goal.ID,
		Spent:        spend,
		BudgetAmount: goal.Amount,
		Ratio:        ratio,
		Severity:     core.SeverityNone,
	}
	switch {
	case ratio.GreaterThanOrEqual(e.critical):
		status.Severity = core.SeverityCritical
	case ratio.GreaterThanOrEqual(e.warning):
		status.Severity = core.SeverityWarning
	}
	return status, nil
}
