package nutrition

import (
	"context"
	"errors"
	"testing"
)

type mockRepo struct {
	plans      map[int64]*MealPlan
	items      map[int64]*FoodItem
	nextPlanID int64
	nextItemID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		plans:      make(map[int64]*MealPlan),
		items:      make(map[int64]*FoodItem),
		nextPlanID: 1,
		nextItemID: 1,
	}
}

func (m *mockRepo) CreatePlan(_ context.Context, p *MealPlan) error {
	for _, existing := range m.plans {
		if existing.DietLevel == p.DietLevel {
			return ErrLevelTaken
		}
	}
	p.ID = m.nextPlanID
	m.nextPlanID++
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *mockRepo) UpdatePlan(_ context.Context, p *MealPlan) error {
	existing, ok := m.plans[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = p.Name
	existing.Description = p.Description
	return nil
}

func (m *mockRepo) GetPlanByLevel(ctx context.Context, level int) (*MealPlan, error) {
	for _, p := range m.plans {
		if p.DietLevel == level {
			cp := *p
			items, _ := m.ListItems(ctx, p.ID)
			cp.Items = items
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) ListPlans(_ context.Context) ([]*MealPlan, error) {
	var out []*MealPlan
	for _, p := range m.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) DeletePlan(_ context.Context, id int64) error {
	if _, ok := m.plans[id]; !ok {
		return ErrNotFound
	}
	delete(m.plans, id)
	return nil
}

func (m *mockRepo) AddItem(_ context.Context, it *FoodItem) error {
	it.ID = m.nextItemID
	m.nextItemID++
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *mockRepo) RemoveItem(_ context.Context, planID, itemID int64) error {
	it, ok := m.items[itemID]
	if !ok || it.PlanID != planID {
		return ErrNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *mockRepo) ListItems(_ context.Context, planID int64) ([]*FoodItem, error) {
	var out []*FoodItem
	for _, it := range m.items {
		if it.PlanID == planID {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo), repo
}

func TestCreatePlan(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p := &MealPlan{DietLevel: 2, Name: "Level 2 maintenance"}
	if err := svc.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected an assigned id")
	}

	// One plan per level.
	if err := svc.CreatePlan(ctx, &MealPlan{DietLevel: 2, Name: "dup"}); !errors.Is(err, ErrLevelTaken) {
		t.Errorf("expected ErrLevelTaken, got %v", err)
	}
}

func TestCreatePlan_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, level := range []int{0, 6, -1} {
		if err := svc.CreatePlan(ctx, &MealPlan{DietLevel: level, Name: "x"}); !errors.Is(err, ErrInvalidDietLevel) {
			t.Errorf("level %d: expected ErrInvalidDietLevel, got %v", level, err)
		}
	}
	if err := svc.CreatePlan(ctx, &MealPlan{DietLevel: 1}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestPlanForLevel(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	plan := &MealPlan{DietLevel: 3, Name: "Level 3"}
	if err := svc.CreatePlan(ctx, plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := svc.AddItem(ctx, &FoodItem{PlanID: plan.ID, Meal: MealBreakfast, Name: "Oats", Quantity: "60 g"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	got, err := svc.PlanForLevel(ctx, 3)
	if err != nil {
		t.Fatalf("PlanForLevel: %v", err)
	}
	if len(got.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(got.Items))
	}

	if _, err := svc.PlanForLevel(ctx, 4); !errors.Is(err, ErrNotFound) {
		t.Errorf("unpublished level: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.PlanForLevel(ctx, 9); !errors.Is(err, ErrInvalidDietLevel) {
		t.Errorf("expected ErrInvalidDietLevel, got %v", err)
	}
}

func TestAddItem_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.AddItem(ctx, &FoodItem{PlanID: 1, Meal: "brunch", Name: "x", Quantity: "1"}); !errors.Is(err, ErrInvalidMeal) {
		t.Errorf("expected ErrInvalidMeal, got %v", err)
	}
	if err := svc.AddItem(ctx, &FoodItem{PlanID: 1, Meal: MealLunch, Quantity: "1"}); err == nil {
		t.Error("expected error for missing name")
	}
	bad := -10
	if err := svc.AddItem(ctx, &FoodItem{PlanID: 1, Meal: MealLunch, Name: "x", Quantity: "1", Calories: &bad}); err == nil {
		t.Error("expected error for negative calories")
	}
}

func TestRemoveItem(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	plan := &MealPlan{DietLevel: 1, Name: "Level 1"}
	if err := svc.CreatePlan(ctx, plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	it := &FoodItem{PlanID: plan.ID, Meal: MealDinner, Name: "Soup", Quantity: "300 ml"}
	if err := svc.AddItem(ctx, it); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if err := svc.RemoveItem(ctx, plan.ID, it.ID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := svc.RemoveItem(ctx, plan.ID, it.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second removal, got %v", err)
	}
	// Item ids are scoped to their plan.
	it2 := &FoodItem{PlanID: plan.ID, Meal: MealSnack, Name: "Apple", Quantity: "1"}
	if err := svc.AddItem(ctx, it2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := svc.RemoveItem(ctx, plan.ID+1, it2.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong plan, got %v", err)
	}
}
