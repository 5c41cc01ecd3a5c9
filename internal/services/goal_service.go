package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

// GoalService manages budget goals. Setting a goal for a category that
// already has one deactivates the previous goal, so at most one stays active.
type GoalService struct {
	store storage.Store
	now   func() time.Time
}

func NewGoalService(store storage.Store) *GoalService {
	return &GoalService{store: store, now: time.Now}
}

type GoalInput struct {
	UserID      string
	CategoryID  string
	Amount      decimal.Decimal
	Granularity core.Granularity
}

func (s *GoalService) Set(ctx context.Context, in GoalInput) (core.BudgetGoal, error) {
	g := core.BudgetGoal{
		ID:          uuid.NewString(),
		UserID:      strings.TrimSpace(in.UserID),
		CategoryID:  strings.TrimSpace(in.CategoryID),
		Amount:      in.Amount.Round(2),
		Granularity: in.Granularity,
		Active:      true,
		CreatedAt:   s.now().UTC(),
	}
	if g.Granularity == "" {
		g.Granularity = core.Month
	}
	if err := g.Validate(); err != nil {
		return core.BudgetGoal{}, err
	}

	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return core.BudgetGoal{}, fmt.Errorf("list categories: %w", err)
	}
	known := false
	for _, c := range cats {
		known = known || c.ID == g.CategoryID
	}
	if !known {
		return core.BudgetGoal{}, fmt.Errorf("%w: %s", ErrUnknownCategory, g.CategoryID)
	}

	previous, err := s.store.ActiveGoals(ctx, g.UserID, g.CategoryID)
	if err != nil {
		return core.BudgetGoal{}, fmt.Errorf("active goals: %w", err)
	}
	if err := s.store.InsertGoal(ctx, g); err != nil {
		return core.BudgetGoal{}, fmt.Errorf("save goal: %w", err)
	}
	for _, p := range previous {
		if err := s.store.DeactivateGoal(ctx, g.UserID, p.ID); err != nil {
			// The emitter still resolves to the newest goal.
			slog.WarnContext(ctx, "Failed to deactivate superseded goal", "goal_id", p.ID, "error", err)
		}
	}
	return g, nil
}

func (s *GoalService) List(ctx context.Context, userID string) ([]core.BudgetGoal, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	return s.store.ListGoals(ctx, userID)
}

func (s *GoalService) Deactivate(ctx context.Context, userID, id string) error {
	return s.store.DeactivateGoal(ctx, userID, id)
}
