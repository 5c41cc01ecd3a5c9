package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
)

// Store is the persistence the emitter reads goals and alert state from.
type Store interface {
	ExpenseSummer
	ActiveGoals(ctx context.Context, userID, categoryID string) ([]core.BudgetGoal, error)
	AlertExists(ctx context.Context, userID, categoryID string, period core.Period, severity core.Severity) (bool, error)
	InsertAlert(ctx context.Context, a core.Alert) (bool, error)
}

// AlertNotifier receives every newly persisted alert. Failures are logged only.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, a core.Alert) error
}

type Option func(*Emitter)

func WithNotifier(n AlertNotifier) Option {
	return func(e *Emitter) { e.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(e *Emitter) { e.loc = loc }
}

// Emitter turns each new expense into at most one overspending alert.
//
// Escalation state per (user, category, period) is never kept in memory: it
// is rebuilt from the alerts already stored for that period, inside a
// critical section keyed the same way. Emitters in other processes are
// fenced by InsertAlert, which refuses duplicates and any warning stored
// after a critical for the same period.
type Emitter struct {
	store    Store
	agg      *Aggregator
	eval     *Evaluator
	locks    *KeyedMutex
	notifier AlertNotifier
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
}

func NewEmitter(store Store, policy Policy, opts ...Option) *Emitter {
	e := &Emitter{
		store:  store,
		agg:    NewAggregator(store),
		eval:   NewEvaluator(policy),
		locks:  NewKeyedMutex(),
		loc:    time.UTC,
		now:    time.Now,
		logger: log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentBudget}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnTransaction evaluates tx against its category's active goal and persists
// an alert when a higher severity band has been crossed for the period.
// It returns the new alert, or nil when nothing was emitted.
//
// Errors are meant to be logged by the caller; they never invalidate tx.
func (e *Emitter) OnTransaction(ctx context.Context, tx core.Transaction) (*core.Alert, error) {
	if tx.Kind != core.Expense || !tx.HasCategory() {
		return nil, nil
	}
	categoryID := *tx.CategoryID

	goal, ok, err := e.activeGoal(ctx, tx.UserID, categoryID)
	if err != nil || !ok {
		return nil, err
	}

	period := PeriodFor(tx.OccurredAt, goal.Granularity, e.loc)
	alert, status, err := e.escalate(ctx, tx, categoryID, goal, period)
	if err != nil || alert == nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Budget alert emitted",
		log.FieldAlertID, alert.ID,
		log.FieldUserID, alert.UserID,
		log.FieldCategoryID, alert.CategoryID,
		log.FieldSeverity, alert.Severity,
		log.FieldRatio, status.Ratio.StringFixed(4),
		log.FieldPeriodStart, period.Start.Format(time.DateOnly))

	// The period lock is already released here.
	if e.notifier != nil {
		if err := e.notifier.NotifyAlert(ctx, *alert); err != nil {
			e.logger.WarnContext(ctx, "Alert notification failed", log.FieldAlertID, alert.ID, log.FieldError, err)
		}
	}
	return alert, nil
}

// escalate runs the read-evaluate-insert sequence under the period lock.
// It returns a nil alert when nothing new was stored.
func (e *Emitter) escalate(ctx context.Context, tx core.Transaction, categoryID string, goal core.BudgetGoal, period core.Period) (*core.Alert, core.BudgetStatus, error) {
	unlock := e.locks.Lock(lockKey(tx.UserID, categoryID, period))
	defer unlock()

	spent, err := e.agg.SpendFor(ctx, tx.UserID, categoryID, period)
	if err != nil {
		e.logger.WarnContext(ctx, "Skipping budget evaluation, spend unavailable",
			log.FieldTxID, tx.ID, log.FieldUserID, tx.UserID, log.FieldCategoryID, categoryID,
			log.FieldError, err)
		return nil, core.BudgetStatus{}, err
	}

	status, err := e.eval.Evaluate(spent, goal)
	if err != nil {
		e.logger.ErrorContext(ctx, "Invalid budget goal, operator review needed",
			log.FieldGoalID, goal.ID, log.FieldUserID, tx.UserID, log.FieldError, err)
		return nil, status, err
	}
	if status.Severity == core.SeverityNone {
		return nil, status, nil
	}

	announced, err := e.announcedSeverity(ctx, tx.UserID, categoryID, period)
	if err != nil {
		return nil, status, err
	}
	if status.Severity.Rank() <= announced.Rank() {
		return nil, status, nil
	}

	alert := core.Alert{
		ID:          uuid.NewString(),
		UserID:      tx.UserID,
		CategoryID:  categoryID,
		GoalID:      goal.ID,
		Type:        core.AlertOverspending,
		Severity:    status.Severity,
		Message:     alertMessage(status, categoryID, period),
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		CreatedAt:   e.now().UTC(),
	}
	inserted, err := e.store.InsertAlert(ctx, alert)
	if err != nil {
		return nil, status, fmt.Errorf("insert alert: %w", err)
	}
	if !inserted {
		// Another emitter stored this severity, or a higher one, first.
		return nil, status, nil
	}
	return &alert, status, nil
}

// activeGoal picks the most recently created active goal. More than one
// active goal is a data anomaly that is logged and otherwise tolerated.
func (e *Emitter) activeGoal(ctx context.Context, userID, categoryID string) (core.BudgetGoal, bool, error) {
	goals, err := e.store.ActiveGoals(ctx, userID, categoryID)
	if err != nil {
		if !errors.Is(err, core.ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
		}
		return core.BudgetGoal{}, false, fmt.Errorf("active goal: %w", err)
	}
	if len(goals) == 0 {
		return core.BudgetGoal{}, false, nil
	}

	if len(goals) > 1 {
		ids := make([]string, len(goals))
		for i, g := range goals {
			ids[i] = g.ID
		}
		e.logger.WarnContext(ctx, "Data anomaly: multiple active goals, using most recent",
			log.FieldUserID, userID,
			log.FieldCategoryID, categoryID,
			log.FieldGoalID, goals[0].ID,
			"goal_ids", ids,
			log.FieldError, core.ErrMultipleActiveGoals)
	}
	return goals[0], true, nil
}

// announcedSeverity is the highest severity already stored for the period.
func (e *Emitter) announcedSeverity(ctx context.Context, userID, categoryID string, p core.Period) (core.Severity, error) {
	for _, sev := range []core.Severity{core.SeverityCritical, core.SeverityWarning} {
		exists, err := e.store.AlertExists(ctx, userID, categoryID, p, sev)
		if err != nil {
			return core.SeverityNone, fmt.Errorf("alert state: %w", err)
		}
		if exists {
			return sev, nil
		}
	}
	return core.SeverityNone, nil
}

func lockKey(userID, categoryID string, p core.Period) string {
	return fmt.Sprintf("%s|%s|%d|%d", userID, categoryID, p.Start.UnixMilli(), p.End.UnixMilli())
}

var hundred = decimal.NewFromInt(100)

func alertMessage(s core.BudgetStatus, categoryID string, p core.Period) string {
	pct := s.Ratio.Mul(hundred).Round(0)
	if s.Severity == core.SeverityCritical {
		return fmt.Sprintf("You've exceeded your %s %s budget: spent %s of %s (%s%%).",
			categoryID, p.Granularity, s.Spent.StringFixed(2), s.BudgetAmount.StringFixed(2), pct)
	}
	return fmt.Sprintf("You've used %s%% of your %s %s budget: spent %s of %s.",
		pct, categoryID, p.Granularity, s.Spent.StringFixed(2), s.BudgetAmount.StringFixed(2))
}
