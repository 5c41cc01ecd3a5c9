package backend

import (
	"context"

	"github.com/arsenis-cmd/BudgetBot/internal/sheets"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles the persistence collaborator and the alert sink.
type BackendResult struct {
	Store storage.Store
	// AlertSink mirrors emitted alerts; the in-memory sink when no
	// spreadsheet is configured.
	AlertSink sheets.AlertWriter
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets alert mirror, optional for every backend type.
	GoogleSpreadsheetID   string
	GoogleAlertsSheetName string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
