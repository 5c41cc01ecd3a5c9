package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	ports "github.com/arsenis-cmd/BudgetBot/internal/sheets"
)

// Sink keeps mirrored alerts in memory. Used when no spreadsheet is configured.
type Sink struct {
	mu     sync.Mutex
	alerts []core.Alert
	seen   map[string]int
}

var _ ports.AlertWriter = (*Sink)(nil)

func New() *Sink {
	return &Sink{seen: make(map[string]int)}
}

// AppendAlert stores the alert and returns a synthetic row reference.
// Redelivered alerts keep their original row.
func (s *Sink) AppendAlert(_ context.Context, a core.Alert) (string, error) {
	if a.ID == "" || a.UserID == "" {
		return "", errors.New("validation failed: alert id and user id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.seen[a.ID]; ok {
		return fmt.Sprintf("mem:%d", row), nil
	}
	s.alerts = append(s.alerts, a)
	s.seen[a.ID] = len(s.alerts)
	return fmt.Sprintf("mem:%d", len(s.alerts)), nil
}

// Alerts returns the mirrored alerts in append order.
func (s *Sink) Alerts() []core.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Alert(nil), s.alerts...)
}
