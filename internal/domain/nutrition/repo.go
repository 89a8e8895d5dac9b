package nutrition

import "context"

type Repository interface {
	CreatePlan(ctx context.Context, p *MealPlan) error
	UpdatePlan(ctx context.Context, p *MealPlan) error
	GetPlanByLevel(ctx context.Context, level int) (*MealPlan, error)
	ListPlans(ctx context.Context) ([]*MealPlan, error)
	DeletePlan(ctx context.Context, id int64) error

	AddItem(ctx context.Context, it *FoodItem) error
	RemoveItem(ctx context.Context, planID, itemID int64) error
	ListItems(ctx context.Context, planID int64) ([]*FoodItem, error)
}
