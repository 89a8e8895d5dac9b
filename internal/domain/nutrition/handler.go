package nutrition

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dieta/dieta/internal/platform/auth"
)

// DietLevelLookup resolves the diet level assigned to a patient. Wired from
// the patients service so this package does not depend on it.
type DietLevelLookup func(ctx context.Context, patientID int64) (int, error)

type Handler struct {
	svc       *Service
	dietLevel DietLevelLookup
}

func NewHandler(svc *Service, dietLevel DietLevelLookup) *Handler {
	return &Handler{svc: svc, dietLevel: dietLevel}
}

// RegisterRoutes wires the handler's routes. Patients read only their own
// plan; professionals manage all plans.
func (h *Handler) RegisterRoutes(patientG, professionalG *echo.Group) {
	patientG.GET("/meal-plan", h.MyPlan)

	professionalG.POST("/meal-plans", h.CreatePlan)
	professionalG.GET("/meal-plans", h.ListPlans)
	professionalG.GET("/meal-plans/level/:level", h.PlanForLevel)
	professionalG.PUT("/meal-plans/:id", h.UpdatePlan)
	professionalG.DELETE("/meal-plans/:id", h.DeletePlan)
	professionalG.POST("/meal-plans/:id/items", h.AddItem)
	professionalG.DELETE("/meal-plans/:id/items/:itemID", h.RemoveItem)
}

// MyPlan handles GET /patient/meal-plan. The plan is looked up by the
// resolved patient's own diet level; there is no way to read another level.
func (h *Handler) MyPlan(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())

	level, err := h.dietLevel(c.Request().Context(), ident.AccountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}

	plan, err := h.svc.PlanForLevel(c.Request().Context(), level)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no plan published for your diet level")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load meal plan")
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var p MealPlan
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePlan(c.Request().Context(), &p); err != nil {
		switch {
		case errors.Is(err, ErrLevelTaken):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidDietLevel):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, &p)
}

func (h *Handler) ListPlans(c echo.Context) error {
	plans, err := h.svc.ListPlans(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, plans)
}

func (h *Handler) PlanForLevel(c echo.Context) error {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid diet level")
	}
	plan, err := h.svc.PlanForLevel(c.Request().Context(), level)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDietLevel):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "no plan for this diet level")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load meal plan")
		}
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) UpdatePlan(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var p MealPlan
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePlan(c.Request().Context(), &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "meal plan not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeletePlan(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePlan(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "meal plan not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete meal plan")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddItem(c echo.Context) error {
	planID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var it FoodItem
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it.PlanID = planID
	if err := h.svc.AddItem(c.Request().Context(), &it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, &it)
}

func (h *Handler) RemoveItem(c echo.Context) error {
	planID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	itemID, err := parseID(c, "itemID")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveItem(c.Request().Context(), planID, itemID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "food item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to remove item")
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
