package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arsenis-cmd/BudgetBot/internal/config"
	sheetmem "github.com/arsenis-cmd/BudgetBot/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DataBackend = "memory"
	cfg.GoogleSpreadsheetID = "sheet-1"

	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != MemoryBackend || got.GoogleSpreadsheetID != "sheet-1" || got.GoogleAlertsSheetName != "Alerts" {
		t.Fatalf("unexpected config %+v", got)
	}

	cfg.DataBackend = "postgres"
	_, err = FromAppConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "valid: sqlite, memory") {
		t.Fatalf("expected error listing valid backends, got %v", err)
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{Type: SQLiteBackend}).Validate(); err == nil {
		t.Fatal("sqlite without a path must fail")
	}
	if err := (Config{Type: MemoryBackend}).Validate(); err != nil {
		t.Fatalf("memory: %v", err)
	}
	err := (Config{Type: "postgres"}).Validate()
	if err == nil || !strings.Contains(err.Error(), "valid: sqlite, memory") {
		t.Fatalf("expected error listing valid backends, got %v", err)
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if err := res.Store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, ok := res.AlertSink.(*sheetmem.Sink); !ok {
		t.Fatalf("expected in-memory alert sink, got %T", res.AlertSink)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "budget.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	cats, err := res.Store.ListCategories(context.Background())
	if err != nil || len(cats) == 0 {
		t.Fatalf("seeded categories: %v (%d)", err, len(cats))
	}
}

func TestSpreadsheetWithoutCredentialsFallsBackToMemory(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:                MemoryBackend,
		GoogleSpreadsheetID: "sheet-1",
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if _, ok := res.AlertSink.(*sheetmem.Sink); !ok {
		t.Fatalf("expected memory fallback, got %T", res.AlertSink)
	}
}
