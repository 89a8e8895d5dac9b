package nutrition

import "time"

// MinDietLevel and MaxDietLevel bound the clinic's diet programs. Every
// patient is assigned exactly one level and reads the plan published for it.
const (
	MinDietLevel = 1
	MaxDietLevel = 5
)

// Meal slots a food item can belong to.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// ValidMeal reports whether the given slot is one of the known meals.
func ValidMeal(meal string) bool {
	switch meal {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// MealPlan is the published plan for one diet level. There is at most one
// plan per level.
type MealPlan struct {
	ID          int64       `json:"id"`
	DietLevel   int         `json:"diet_level"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Items       []*FoodItem `json:"items,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// FoodItem is a single entry in a meal plan.
type FoodItem struct {
	ID       int64   `json:"id"`
	PlanID   int64   `json:"plan_id"`
	Meal     string  `json:"meal"`
	Name     string  `json:"name"`
	Quantity string  `json:"quantity"`
	Calories *int    `json:"calories,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}
