package professionals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dieta/dieta/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service) {
	svc, _ := newTestService()
	codec := auth.NewSessionCodec("handler-test-secret-0123456789abcdef", time.Hour)
	return NewHandler(svc, codec, nil, false), svc
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

func withProfessionalIdentity(c echo.Context, id int64) {
	ident := &auth.Identity{Kind: auth.KindProfessional, AccountID: id, Channel: "header"}
	ctx := context.WithValue(c.Request().Context(), auth.IdentityKey, ident)
	c.SetRequest(c.Request().WithContext(ctx))
}

func withParamID(c echo.Context, id int64) {
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(id, 10))
}

func httpStatus(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestHandlerValidateCode(t *testing.T) {
	h, svc := newTestHandler()
	p := seedProfessional(t, svc)

	c, rec := newJSONContext(http.MethodPost, "/professional/validate", `{"accessCode":"`+p.AccessCode+`"}`)
	if err := h.ValidateCode(c); err != nil {
		t.Fatalf("ValidateCode: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	found := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.SessionCookieName {
			found = true
		}
	}
	if !found {
		t.Error("expected a session cookie")
	}

	c, _ = newJSONContext(http.MethodPost, "/professional/validate", `{"accessCode":"ZZZZ9999"}`)
	if err := h.ValidateCode(c); httpStatus(err) != http.StatusNotFound {
		t.Errorf("unknown code: expected 404, got %v", err)
	}
}

func TestHandlerValidateCode_MissingOrMalformed(t *testing.T) {
	h, _ := newTestHandler()

	for name, body := range map[string]string{
		"empty object":   `{}`,
		"empty string":   `{"accessCode":""}`,
		"malformed code": `{"accessCode":"nope"}`,
	} {
		c, _ := newJSONContext(http.MethodPost, "/professional/validate", body)
		if err := h.ValidateCode(c); httpStatus(err) != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %v", name, err)
		}
	}
}

func TestHandlerCurrent(t *testing.T) {
	h, svc := newTestHandler()
	p := seedProfessional(t, svc)

	c, rec := newJSONContext(http.MethodGet, "/professional/current", "")
	withProfessionalIdentity(c, p.ID)
	if err := h.Current(c); err != nil {
		t.Fatalf("Current: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandlerCreateProfessional_Profile(t *testing.T) {
	h, _ := newTestHandler()

	c, rec := newJSONContext(http.MethodPost, "/professional/staff",
		`{"first_name":"Anna","last_name":"Rossi","specialty":"Dietetics","license":"IT-4321"}`)
	if err := h.CreateProfessional(c); err != nil {
		t.Fatalf("CreateProfessional: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var body struct {
		Professional struct {
			Specialty *string `json:"specialty"`
			License   *string `json:"license"`
		} `json:"professional"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Professional.Specialty == nil || *body.Professional.Specialty != "Dietetics" {
		t.Errorf("expected specialty Dietetics, got %v", body.Professional.Specialty)
	}
	if body.Professional.License == nil || *body.Professional.License != "IT-4321" {
		t.Errorf("expected license IT-4321, got %v", body.Professional.License)
	}
}

func TestHandlerCreateProfessional(t *testing.T) {
	h, _ := newTestHandler()

	c, rec := newJSONContext(http.MethodPost, "/professional/staff", `{"first_name":"Anna","last_name":"Rossi"}`)
	if err := h.CreateProfessional(c); err != nil {
		t.Fatalf("CreateProfessional: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var body struct {
		AccessCode string `json:"access_code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !auth.IsWellFormed(body.AccessCode) {
		t.Errorf("expected a well-formed access code, got %q", body.AccessCode)
	}

	c, _ = newJSONContext(http.MethodPost, "/professional/staff", `{"first_name":"Anna"}`)
	if err := h.CreateProfessional(c); httpStatus(err) != http.StatusBadRequest {
		t.Errorf("missing last name: expected 400, got %v", err)
	}
}

func TestHandlerRevokeAndReissue(t *testing.T) {
	h, svc := newTestHandler()
	p := seedProfessional(t, svc)
	oldCode := p.AccessCode

	c, rec := newJSONContext(http.MethodPost, "/professional/staff/1/revoke-code", "")
	withParamID(c, p.ID)
	if err := h.RevokeCode(c); err != nil {
		t.Fatalf("RevokeCode: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if _, err := svc.ValidateCode(context.Background(), oldCode); err == nil {
		t.Error("revoked code should no longer validate")
	}

	c, rec = newJSONContext(http.MethodPost, "/professional/staff/1/reissue-code", "")
	withParamID(c, p.ID)
	if err := h.ReissueCode(c); err != nil {
		t.Fatalf("ReissueCode: %v", err)
	}
	var body struct {
		AccessCode string `json:"access_code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, err := svc.ValidateCode(context.Background(), body.AccessCode); err != nil {
		t.Errorf("reissued code should validate, got %v", err)
	}
}

func TestHandlerDeactivate_SelfGuard(t *testing.T) {
	h, svc := newTestHandler()
	p := seedProfessional(t, svc)
	other := seedProfessional(t, svc)

	// A professional cannot deactivate their own account.
	c, _ := newJSONContext(http.MethodDelete, "/professional/staff/1", "")
	withParamID(c, p.ID)
	withProfessionalIdentity(c, p.ID)
	if err := h.DeactivateProfessional(c); httpStatus(err) != http.StatusConflict {
		t.Errorf("self-deactivation: expected 409, got %v", err)
	}

	c, rec := newJSONContext(http.MethodDelete, "/professional/staff/2", "")
	withParamID(c, other.ID)
	withProfessionalIdentity(c, p.ID)
	if err := h.DeactivateProfessional(c); err != nil {
		t.Fatalf("DeactivateProfessional: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
