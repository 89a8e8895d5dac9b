package wellbeing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dieta/dieta/internal/platform/auth"
)

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

func TestHandlerRecordMood(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))

	c, rec := newJSONContext(http.MethodPost, "/patient/moods", `{"score":4,"note":"good day"}`)
	withPatientIdentity(c, 7)
	if err := h.RecordMood(c); err != nil {
		t.Fatalf("RecordMood: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var entry MoodEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if entry.PatientID != 7 {
		t.Errorf("entry must belong to the resolved patient, got %d", entry.PatientID)
	}
	if entry.Score != 4 {
		t.Errorf("expected score 4, got %d", entry.Score)
	}
}

func TestHandlerRecordMood_InvalidScore(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))

	c, _ := newJSONContext(http.MethodPost, "/patient/moods", `{"score":9}`)
	withPatientIdentity(c, 7)
	if err := h.RecordMood(c); httpStatus(err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerMyEntries_ScopedToIdentity(t *testing.T) {
	svc := NewService(newMockRepo())
	h := NewHandler(svc)

	if _, err := svc.RecordMood(context.Background(), 7, 3, nil); err != nil {
		t.Fatalf("RecordMood: %v", err)
	}
	if _, err := svc.RecordMood(context.Background(), 8, 5, nil); err != nil {
		t.Fatalf("RecordMood: %v", err)
	}

	c, rec := newJSONContext(http.MethodGet, "/patient/moods", "")
	withPatientIdentity(c, 7)
	if err := h.MyEntries(c); err != nil {
		t.Fatalf("MyEntries: %v", err)
	}

	var body struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Total != 1 {
		t.Errorf("expected only the caller's entries, got total %d", body.Total)
	}
}

func TestHandlerPatientEntries(t *testing.T) {
	svc := NewService(newMockRepo())
	h := NewHandler(svc)

	if _, err := svc.RecordMood(context.Background(), 7, 2, nil); err != nil {
		t.Fatalf("RecordMood: %v", err)
	}

	c, rec := newJSONContext(http.MethodGet, "/professional/patients/7/moods", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := h.PatientEntries(c); err != nil {
		t.Fatalf("PatientEntries: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = newJSONContext(http.MethodGet, "/professional/patients/x/moods", "")
	c.SetParamNames("id")
	c.SetParamValues("x")
	if err := h.PatientEntries(c); httpStatus(err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
