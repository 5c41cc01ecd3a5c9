package budget

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

func TestEvaluator_SeverityBands(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	goal := core.BudgetGoal{ID: "g1", Amount: decimal.NewFromInt(500)}

	tests := []struct {
		spend string
		want  core.Severity
	}{
		{"0", core.SeverityNone},
		{"250", core.SeverityNone},
		{"399.99", core.SeverityNone},
		{"400", core.SeverityWarning},
		{"450", core.SeverityWarning},
		{"499.99", core.SeverityWarning},
		{"500", core.SeverityCritical},
		{"550", core.SeverityCritical},
		{"100000", core.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.spend, func(t *testing.T) {
			st, err := e.Evaluate(decimal.RequireFromString(tt.spend), goal)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if st.Severity != tt.want {
				t.Fatalf("severity = %s, want %s (ratio %s)", st.Severity, tt.want, st.Ratio)
			}
			if st.GoalID != "g1" || !st.BudgetAmount.Equal(goal.Amount) {
				t.Fatalf("status not tied to goal: %+v", st)
			}
		})
	}
}

func TestEvaluator_Ratio(t *testing.T) {
	st, err := NewEvaluator(DefaultPolicy()).Evaluate(decimal.NewFromInt(400), core.BudgetGoal{Amount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatal(err)
	}
	if !st.Ratio.Equal(decimal.RequireFromString("0.8")) {
		t.Fatalf("ratio = %s, want 0.8", st.Ratio)
	}
}

func TestEvaluator_InvalidGoal(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	for _, amount := range []string{"0", "-10"} {
		_, err := e.Evaluate(decimal.NewFromInt(10), core.BudgetGoal{ID: "bad", Amount: decimal.RequireFromString(amount)})
		if !errors.Is(err, core.ErrInvalidGoal) {
			t.Fatalf("amount %s: expected ErrInvalidGoal, got %v", amount, err)
		}
	}
}

func TestEvaluator_CustomPolicy(t *testing.T) {
	e := NewEvaluator(Policy{WarningRatio: 0.5, CriticalRatio: 0.9})
	goal := core.BudgetGoal{Amount: decimal.NewFromInt(100)}

	st, _ := e.Evaluate(decimal.NewFromInt(50), goal)
	if st.Severity != core.SeverityWarning {
		t.Fatalf("50/100 with 0.5 warning = %s", st.Severity)
	}
	st, _ = e.Evaluate(decimal.NewFromInt(90), goal)
	if st.Severity != core.SeverityCritical {
		t.Fatalf("90/100 with 0.9 critical = %s", st.Severity)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"equal thresholds", Policy{WarningRatio: 1, CriticalRatio: 1}, false},
		{"zero warning", Policy{WarningRatio: 0, CriticalRatio: 1}, true},
		{"inverted", Policy{WarningRatio: 1.2, CriticalRatio: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
