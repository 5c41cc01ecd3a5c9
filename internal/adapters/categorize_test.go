package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

type stubCategorizer struct {
	alert *core.Alert
	err   error
	got   string
}

func (s *stubCategorizer) Categorize(_ context.Context, userID, txID string) (*core.Alert, error) {
	s.got = userID + "/" + txID
	return s.alert, s.err
}

func TestCategorizeFunc(t *testing.T) {
	stub := &stubCategorizer{alert: &core.Alert{ID: "a1", Severity: core.SeverityCritical}}
	if err := CategorizeFunc(stub)(context.Background(), "u1", "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.got != "u1/t1" {
		t.Fatalf("forwarded %q", stub.got)
	}

	boom := errors.New("boom")
	stub = &stubCategorizer{err: boom}
	if err := CategorizeFunc(stub)(context.Background(), "u1", "t1"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
