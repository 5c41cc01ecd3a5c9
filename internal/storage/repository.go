package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

// DSN builds the sqlite connection string used by both the repository and migrations.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite repository ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// unavailable tags a driver failure as transient for the engine's error taxonomy.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorageUnavailable, err)
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	var category any
	if tx.HasCategory() {
		category = *tx.CategoryID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount_cents, kind, category_id, description, occurred_at, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, core.ToCents(tx.Amount), string(tx.Kind), category,
		tx.Description, toMillis(tx.OccurredAt), string(tx.Source), toMillis(tx.CreatedAt))
	if err != nil {
		return unavailable("insert transaction", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user_id", tx.UserID,
		"kind", tx.Kind,
		"amount", tx.Amount.String())
	return nil
}

const transactionColumns = `id, user_id, amount_cents, kind, category_id, description, occurred_at, source, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx         core.Transaction
		cents      int64
		kind       string
		category   sql.NullString
		occurredAt int64
		source     string
		createdAt  int64
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &cents, &kind, &category, &tx.Description, &occurredAt, &source, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = core.FromCents(cents)
	tx.Kind = core.Kind(kind)
	if category.Valid {
		c := category.String
		tx.CategoryID = &c
	}
	tx.OccurredAt = fromMillis(occurredAt)
	tx.Source = core.Source(source)
	tx.CreatedAt = fromMillis(createdAt)
	return tx, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, unavailable("get transaction", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{f.UserID}
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if !f.From.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "occurred_at < ?")
		args = append(args, toMillis(f.To))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY occurred_at DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, unavailable("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list transactions", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return unavailable("delete transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) SetTransactionCategory(ctx context.Context, userID, id, categoryID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ? WHERE user_id = ? AND id = ? AND category_id IS NULL`,
		categoryID, userID, id)
	if err != nil {
		return false, unavailable("set transaction category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("set transaction category", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID, categoryID string, start, end time.Time) (decimal.Decimal, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND category_id = ? AND kind = 'expense'
		  AND occurred_at >= ? AND occurred_at < ?`,
		userID, categoryID, toMillis(start), toMillis(end)).Scan(&total)
	if err != nil {
		return decimal.Zero, unavailable("sum expenses", err)
	}
	return core.FromCents(total), nil
}

func (r *SQLiteRepository) SumByKind(ctx context.Context, userID string, start, end time.Time) (core.KindTotals, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, COALESCE(SUM(amount_cents), 0), COUNT(*) FROM transactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?
		GROUP BY kind`,
		userID, toMillis(start), toMillis(end))
	if err != nil {
		return core.KindTotals{}, unavailable("sum by kind", err)
	}
	defer rows.Close()

	totals := core.KindTotals{Income: decimal.Zero, Expenses: decimal.Zero}
	for rows.Next() {
		var (
			kind         string
			cents, count int64
		)
		if err := rows.Scan(&kind, &cents, &count); err != nil {
			return core.KindTotals{}, unavailable("scan kind totals", err)
		}
		switch core.Kind(kind) {
		case core.Income:
			totals.Income = core.FromCents(cents)
			totals.IncomeCount = count
		case core.Expense:
			totals.Expenses = core.FromCents(cents)
			totals.ExpensesCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return core.KindTotals{}, unavailable("sum by kind", err)
	}
	return totals, nil
}

func (r *SQLiteRepository) SumExpensesByCategory(ctx context.Context, userID string, start, end time.Time) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category_id, SUM(amount_cents) AS total FROM transactions
		WHERE user_id = ? AND kind = 'expense' AND category_id IS NOT NULL
		  AND occurred_at >= ? AND occurred_at < ?
		GROUP BY category_id
		ORDER BY total DESC, category_id`,
		userID, toMillis(start), toMillis(end))
	if err != nil {
		return nil, unavailable("sum expenses by category", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var (
			categoryID string
			cents      int64
		)
		if err := rows.Scan(&categoryID, &cents); err != nil {
			return nil, unavailable("scan category sums", err)
		}
		out = append(out, core.CategoryAmount{CategoryID: categoryID, Amount: core.FromCents(cents)})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("sum expenses by category", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertGoal(ctx context.Context, g core.BudgetGoal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_goals (id, user_id, category_id, amount_cents, granularity, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.CategoryID, core.ToCents(g.Amount), string(g.Granularity), g.Active, toMillis(g.CreatedAt))
	if err != nil {
		return unavailable("insert goal", err)
	}
	slog.InfoContext(ctx, "Budget goal saved",
		"id", g.ID,
		"user_id", g.UserID,
		"category_id", g.CategoryID,
		"amount", g.Amount.String(),
		"granularity", g.Granularity)
	return nil
}

func scanGoals(rows *sql.Rows) ([]core.BudgetGoal, error) {
	defer rows.Close()

	var out []core.BudgetGoal
	for rows.Next() {
		var (
			g           core.BudgetGoal
			cents       int64
			granularity string
			createdAt   int64
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.CategoryID, &cents, &granularity, &g.Active, &createdAt); err != nil {
			return nil, unavailable("scan goal", err)
		}
		g.Amount = core.FromCents(cents)
		g.Granularity = core.Granularity(granularity)
		g.CreatedAt = fromMillis(createdAt)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list goals", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.BudgetGoal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, amount_cents, granularity, active, created_at
		FROM budget_goals WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, unavailable("list goals", err)
	}
	return scanGoals(rows)
}

func (r *SQLiteRepository) ActiveGoals(ctx context.Context, userID, categoryID string) ([]core.BudgetGoal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, amount_cents, granularity, active, created_at
		FROM budget_goals WHERE user_id = ? AND category_id = ? AND active = 1
		ORDER BY created_at DESC, rowid DESC`, userID, categoryID)
	if err != nil {
		return nil, unavailable("active goals", err)
	}
	return scanGoals(rows)
}

func (r *SQLiteRepository) DeactivateGoal(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE budget_goals SET active = 0 WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return unavailable("deactivate goal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) InsertAlert(ctx context.Context, a core.Alert) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, user_id, category_id, goal_id, type, severity, message, period_start, period_end, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE ? <> ? OR NOT EXISTS (
			SELECT 1 FROM alerts
			WHERE user_id = ? AND category_id = ? AND period_start = ? AND period_end = ? AND severity = ?
		)
		ON CONFLICT (user_id, category_id, period_start, period_end, severity) DO NOTHING`,
		a.ID, a.UserID, a.CategoryID, a.GoalID, string(a.Type), string(a.Severity), a.Message,
		toMillis(a.PeriodStart), toMillis(a.PeriodEnd), toMillis(a.CreatedAt),
		string(a.Severity), string(core.SeverityWarning),
		a.UserID, a.CategoryID, toMillis(a.PeriodStart), toMillis(a.PeriodEnd), string(core.SeverityCritical))
	if err != nil {
		return false, unavailable("insert alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("insert alert", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) AlertExists(ctx context.Context, userID, categoryID string, period core.Period, severity core.Severity) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE user_id = ? AND category_id = ? AND period_start = ? AND period_end = ? AND severity = ?
		)`,
		userID, categoryID, toMillis(period.Start), toMillis(period.End), string(severity)).Scan(&exists)
	if err != nil {
		return false, unavailable("alert exists", err)
	}
	return exists == 1, nil
}

func (r *SQLiteRepository) ListAlerts(ctx context.Context, userID string, limit int) ([]core.Alert, error) {
	query := `
		SELECT id, user_id, category_id, goal_id, type, severity, message, period_start, period_end, created_at
		FROM alerts WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list alerts", err)
	}
	defer rows.Close()

	var out []core.Alert
	for rows.Next() {
		var (
			a                               core.Alert
			alertType, severity             string
			periodStart, periodEnd, created int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.CategoryID, &a.GoalID, &alertType, &severity, &a.Message,
			&periodStart, &periodEnd, &created); err != nil {
			return nil, unavailable("scan alert", err)
		}
		a.Type = core.AlertType(alertType)
		a.Severity = core.Severity(severity)
		a.PeriodStart = fromMillis(periodStart)
		a.PeriodEnd = fromMillis(periodEnd)
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list alerts", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, unavailable("list categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, unavailable("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list categories", err)
	}
	return out, nil
}

// CategoryByName matches case-insensitively, the way the categorization
// collaborator reports names.
func (r *SQLiteRepository) CategoryByName(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE lower(name) = lower(?)`, strings.TrimSpace(name)).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, unavailable("category by name", err)
	}
	return c, nil
}
