package google

import (
	"context"
	"testing"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Alerts")
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), "sheet-id", ""); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+"/missing.json")

	if _, err := New(context.Background(), "sheet-id", ""); err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

func TestAppendAlert_Validation(t *testing.T) {
	c := &Client{spreadsheetID: "test", alertsBase: DefaultAlertsSheet}

	if _, err := c.AppendAlert(context.Background(), core.Alert{UserID: "u1"}); err == nil {
		t.Fatal("expected validation error for alert without id")
	}
	if _, err := c.AppendAlert(context.Background(), core.Alert{ID: "a1", UserID: "u1"}); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestAlertRow(t *testing.T) {
	a := core.Alert{
		ID:          "a1",
		UserID:      "u1",
		CategoryID:  "dining",
		Severity:    core.SeverityWarning,
		Message:     "80% used",
		PeriodStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
	}
	row := alertRow(a)
	if len(row) != len(alertColumns) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(alertColumns))
	}
	want := []any{"2025-03-12T10:00:00Z", "2025-03-01", "2025-04-01", "u1", "dining", "warning", "80% used", "a1"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d (%s) = %v, want %v", i, alertColumns[i], row[i], want[i])
		}
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Alerts", 2025, "2025 Alerts"},
		{"  Alerts ", 2024, "2024 Alerts"},
		{"2023 Alerts", 2025, "2023 Alerts"},
		{"", 2025, ""},
		{"9999 Alerts", 2025, "2025 9999 Alerts"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestSheetForUsesPeriodYear(t *testing.T) {
	c := &Client{alertsBase: "Alerts"}
	a := core.Alert{PeriodStart: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)}
	if got := c.sheetFor(a); got != "2024 Alerts" {
		t.Fatalf("sheetFor = %q", got)
	}
}
