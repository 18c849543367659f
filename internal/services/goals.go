package services

import (
	"context"
	"fmt"

	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	"ledgerly/internal/repository"
	"ledgerly/internal/storage"
)

type GoalService struct {
	repo    *repository.Goals
	budgets cache.Cache[core.Budget]
}

func NewGoalService(store storage.Store, budgets cache.Cache[core.Budget]) *GoalService {
	return &GoalService{repo: repository.NewGoals(store), budgets: budgets}
}

// Get never fails for a user without a goal; GoalSet is false instead.
func (s *GoalService) Get(ctx context.Context, userID string) (core.MonthlyGoal, error) {
	return s.repo.Get(ctx, userID)
}

// Set validates min <= max and stores the user's goal.
func (s *GoalService) Set(ctx context.Context, userID string, g core.MonthlyGoal) (core.MonthlyGoal, error) {
	if err := g.Validate(); err != nil {
		return core.MonthlyGoal{}, err
	}
	g.UserID = userID
	g.GoalSet = true
	if err := s.repo.Save(ctx, g); err != nil {
		return core.MonthlyGoal{}, fmt.Errorf("save goal: %w", err)
	}
	invalidateBudgets(ctx, s.budgets, userID)
	return g, nil
}
