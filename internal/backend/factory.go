package backend

import (
	"context"
	"fmt"

	"github.com/arsenis-cmd/BudgetBot/internal/log"
	"github.com/arsenis-cmd/BudgetBot/internal/sheets"
	gsheet "github.com/arsenis-cmd/BudgetBot/internal/sheets/google"
	sheetmem "github.com/arsenis-cmd/BudgetBot/internal/sheets/memory"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
	"github.com/arsenis-cmd/BudgetBot/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentStorage)}
}

// CreateBackend opens the store and, when configured, the spreadsheet mirror.
// A failing spreadsheet client is not fatal: alerts then stay in memory.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(config)
	case MemoryBackend:
		store = memory.New(nil)
		f.logger.Info("Initialized memory backend", "categories", len(memory.DefaultCategories))
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	return &BackendResult{
		Store:     store,
		AlertSink: f.createAlertSink(ctx, config),
		Cleanup:   store.Close,
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (storage.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createAlertSink(ctx context.Context, config Config) sheets.AlertWriter {
	if config.GoogleSpreadsheetID == "" {
		return sheetmem.New()
	}
	cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleAlertsSheetName)
	if err != nil {
		f.logger.Warn("Failed to initialize Google Sheets client, mirroring alerts in memory", log.FieldError, err)
		return sheetmem.New()
	}
	f.logger.Info("Initialized Google Sheets alert mirror", "sheet", config.GoogleAlertsSheetName)
	return cli
}
