package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dieta/dieta/internal/platform/auth"
)

func newTestHandler(levels map[int64]int) (*Handler, *Service) {
	svc, _ := newTestService()
	lookup := func(_ context.Context, patientID int64) (int, error) {
		level, ok := levels[patientID]
		if !ok {
			return 0, errors.New("patient not found")
		}
		return level, nil
	}
	return NewHandler(svc, lookup), svc
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withPatientIdentity(c echo.Context, id int64) {
	ident := &auth.Identity{Kind: auth.KindPatient, AccountID: id, Channel: "session"}
	ctx := context.WithValue(c.Request().Context(), auth.IdentityKey, ident)
	c.SetRequest(c.Request().WithContext(ctx))
}

func httpStatus(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestHandlerMyPlan(t *testing.T) {
	h, svc := newTestHandler(map[int64]int{7: 2})

	plan := &MealPlan{DietLevel: 2, Name: "Level 2"}
	if err := svc.CreatePlan(context.Background(), plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := svc.AddItem(context.Background(), &FoodItem{PlanID: plan.ID, Meal: MealLunch, Name: "Rice", Quantity: "80 g"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	c, rec := newJSONContext(http.MethodGet, "/patient/meal-plan", "")
	withPatientIdentity(c, 7)
	if err := h.MyPlan(c); err != nil {
		t.Fatalf("MyPlan: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var got MealPlan
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.DietLevel != 2 || len(got.Items) != 1 {
		t.Errorf("unexpected plan %+v", got)
	}
}

func TestHandlerMyPlan_NoPlanPublished(t *testing.T) {
	h, _ := newTestHandler(map[int64]int{7: 4})

	c, _ := newJSONContext(http.MethodGet, "/patient/meal-plan", "")
	withPatientIdentity(c, 7)
	if err := h.MyPlan(c); httpStatus(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandlerCreatePlan(t *testing.T) {
	h, _ := newTestHandler(nil)

	c, rec := newJSONContext(http.MethodPost, "/professional/meal-plans", `{"diet_level":1,"name":"Level 1 start"}`)
	if err := h.CreatePlan(c); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	// Duplicate level conflicts.
	c, _ = newJSONContext(http.MethodPost, "/professional/meal-plans", `{"diet_level":1,"name":"dup"}`)
	if err := h.CreatePlan(c); httpStatus(err) != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}

	c, _ = newJSONContext(http.MethodPost, "/professional/meal-plans", `{"diet_level":8,"name":"nope"}`)
	if err := h.CreatePlan(c); httpStatus(err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerPlanForLevel(t *testing.T) {
	h, svc := newTestHandler(nil)
	if err := svc.CreatePlan(context.Background(), &MealPlan{DietLevel: 3, Name: "Level 3"}); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	c, rec := newJSONContext(http.MethodGet, "/professional/meal-plans/level/3", "")
	c.SetParamNames("level")
	c.SetParamValues("3")
	if err := h.PlanForLevel(c); err != nil {
		t.Fatalf("PlanForLevel: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = newJSONContext(http.MethodGet, "/professional/meal-plans/level/5", "")
	c.SetParamNames("level")
	c.SetParamValues("5")
	if err := h.PlanForLevel(c); httpStatus(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandlerAddAndRemoveItem(t *testing.T) {
	h, svc := newTestHandler(nil)
	plan := &MealPlan{DietLevel: 1, Name: "Level 1"}
	if err := svc.CreatePlan(context.Background(), plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	c, rec := newJSONContext(http.MethodPost, "/professional/meal-plans/1/items", `{"meal":"dinner","name":"Fish","quantity":"150 g"}`)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.AddItem(c); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var it FoodItem
	if err := json.Unmarshal(rec.Body.Bytes(), &it); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	c, rec = newJSONContext(http.MethodDelete, "/professional/meal-plans/1/items/1", "")
	c.SetParamNames("id", "itemID")
	c.SetParamValues("1", "1")
	if err := h.RemoveItem(c); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
