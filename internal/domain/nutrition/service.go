package nutrition

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidDietLevel is returned for diet levels outside the program
	// range.
	ErrInvalidDietLevel = fmt.Errorf("diet level must be between %d and %d", MinDietLevel, MaxDietLevel)

	// ErrInvalidMeal is returned for unknown meal slots.
	ErrInvalidMeal = errors.New("meal must be breakfast, lunch, dinner or snack")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreatePlan publishes a plan for a diet level that does not have one yet.
func (s *Service) CreatePlan(ctx context.Context, p *MealPlan) error {
	if p.DietLevel < MinDietLevel || p.DietLevel > MaxDietLevel {
		return ErrInvalidDietLevel
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.CreatePlan(ctx, p)
}

// UpdatePlan changes a plan's name or description. The diet level of an
// existing plan is fixed.
func (s *Service) UpdatePlan(ctx context.Context, p *MealPlan) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.UpdatePlan(ctx, p)
}

// PlanForLevel returns the published plan for a diet level, items included.
func (s *Service) PlanForLevel(ctx context.Context, level int) (*MealPlan, error) {
	if level < MinDietLevel || level > MaxDietLevel {
		return nil, ErrInvalidDietLevel
	}
	return s.repo.GetPlanByLevel(ctx, level)
}

func (s *Service) ListPlans(ctx context.Context) ([]*MealPlan, error) {
	return s.repo.ListPlans(ctx)
}

func (s *Service) DeletePlan(ctx context.Context, id int64) error {
	return s.repo.DeletePlan(ctx, id)
}

// AddItem appends a food item to a plan.
func (s *Service) AddItem(ctx context.Context, it *FoodItem) error {
	if !ValidMeal(it.Meal) {
		return ErrInvalidMeal
	}
	if it.Name == "" {
		return fmt.Errorf("name is required")
	}
	if it.Calories != nil && *it.Calories < 0 {
		return fmt.Errorf("calories cannot be negative")
	}
	return s.repo.AddItem(ctx, it)
}

func (s *Service) RemoveItem(ctx context.Context, planID, itemID int64) error {
	return s.repo.RemoveItem(ctx, planID, itemID)
}
