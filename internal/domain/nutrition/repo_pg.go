package nutrition

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dieta/dieta/internal/platform/db"
)

// ErrNotFound is returned when no plan or item matches the query.
var ErrNotFound = errors.New("meal plan not found")

// ErrLevelTaken is returned when creating a plan for a diet level that
// already has one.
var ErrLevelTaken = errors.New("diet level already has a plan")

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) CreatePlan(ctx context.Context, p *MealPlan) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO meal_plan (diet_level, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		p.DietLevel, p.Name, p.Description,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrLevelTaken
	}
	return err
}

func (r *repoPG) UpdatePlan(ctx context.Context, p *MealPlan) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE meal_plan SET name=$2, description=$3, updated_at=NOW() WHERE id = $1`,
		p.ID, p.Name, p.Description,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) GetPlanByLevel(ctx context.Context, level int) (*MealPlan, error) {
	p := &MealPlan{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, diet_level, name, description, created_at, updated_at
		FROM meal_plan WHERE diet_level = $1`, level,
	).Scan(&p.ID, &p.DietLevel, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items, err := r.ListItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *repoPG) ListPlans(ctx context.Context) ([]*MealPlan, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, diet_level, name, description, created_at, updated_at
		FROM meal_plan ORDER BY diet_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*MealPlan
	for rows.Next() {
		p := &MealPlan{}
		if err := rows.Scan(&p.ID, &p.DietLevel, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repoPG) DeletePlan(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM meal_plan WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) AddItem(ctx context.Context, it *FoodItem) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO food_item (plan_id, meal, name, quantity, calories, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		it.PlanID, it.Meal, it.Name, it.Quantity, it.Calories, it.Notes,
	).Scan(&it.ID)
}

func (r *repoPG) RemoveItem(ctx context.Context, planID, itemID int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM food_item WHERE id = $1 AND plan_id = $2`, itemID, planID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListItems(ctx context.Context, planID int64) ([]*FoodItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, plan_id, meal, name, quantity, calories, notes
		FROM food_item WHERE plan_id = $1
		ORDER BY CASE meal
			WHEN 'breakfast' THEN 1 WHEN 'lunch' THEN 2
			WHEN 'dinner' THEN 3 ELSE 4 END, id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*FoodItem
	for rows.Next() {
		it := &FoodItem{}
		if err := rows.Scan(&it.ID, &it.PlanID, &it.Meal, &it.Name, &it.Quantity, &it.Calories, &it.Notes); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
