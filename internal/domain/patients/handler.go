package patients

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dieta/dieta/internal/platform/auth"
	"github.com/dieta/dieta/pkg/pagination"
)

type Handler struct {
	svc           *Service
	codec         *auth.SessionCodec
	federated     *auth.FederatedVerifier
	professionals auth.ProfessionalVerifier
	secureCookies bool
}

func NewHandler(svc *Service, codec *auth.SessionCodec, federated *auth.FederatedVerifier, professionals auth.ProfessionalVerifier, secureCookies bool) *Handler {
	return &Handler{svc: svc, codec: codec, federated: federated, professionals: professionals, secureCookies: secureCookies}
}

// RegisterRoutes wires the handler's routes. public carries no gate (the
// validation endpoint authenticates by the code in its body, the by-code
// creation variant by the code in its path), patientG is the gated /patient
// group, professionalG the gated /professional group.
func (h *Handler) RegisterRoutes(public, patientG, professionalG *echo.Group) {
	public.POST("/patient/validate", h.ValidateCode)
	if h.professionals != nil {
		public.POST("/professional/:code/patients", h.CreatePatientByCode)
	}

	patientG.GET("/current", h.Current)
	patientG.POST("/weights", h.RecordWeight)
	patientG.GET("/weight-history", h.ListWeights)
	patientG.GET("/weight-history/:id", h.ListOwnWeightsByID)
	patientG.PATCH("/target-weight", h.UpdateTargetWeight)
	patientG.POST("/link", h.LinkIdentity)
	patientG.POST("/logout", h.Logout)

	professionalG.POST("/patients", h.CreatePatient)
	professionalG.GET("/patients", h.ListPatients)
	professionalG.GET("/patients/:id", h.GetPatient)
	professionalG.POST("/patients/:id/weight", h.RecordPatientWeight)
	professionalG.GET("/patients/:id/weight-history", h.ListPatientWeights)
	professionalG.PATCH("/patients/:id/diet-level", h.UpdateDietLevel)
	professionalG.PATCH("/patients/:id/target-weight", h.UpdatePatientTargetWeight)
	professionalG.POST("/patients/:id/revoke-code", h.RevokeCode)
	professionalG.POST("/patients/:id/reissue-code", h.ReissueCode)
	professionalG.DELETE("/patients/:id", h.DeactivatePatient)
}

// patientResponse is the JSON shape returned to clients. The access code is
// only included where the operation explicitly hands out a credential.
type patientResponse struct {
	ID           int64    `json:"id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        *string  `json:"email,omitempty"`
	DietLevel    int      `json:"diet_level"`
	TargetWeight *float64 `json:"target_weight,omitempty"`
	CodeExpiry   string   `json:"code_expiry"`
	Linked       bool     `json:"linked"`
}

func toPatientResponse(p *Patient) *patientResponse {
	return &patientResponse{
		ID:           p.ID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		DietLevel:    p.DietLevel,
		TargetWeight: p.TargetWeight,
		CodeExpiry:   p.CodeExpiry.Format("2006-01-02"),
		Linked:       p.SubjectID != nil,
	}
}

// ValidateCode handles POST /patient/validate. A missing or malformed code
// is a client error; a recognized but expired code returns 410 so the client
// can prompt for renewal; revoked and unknown codes are both 404 so
// revocation cannot be probed.
func (h *Handler) ValidateCode(c echo.Context) error {
	var req struct {
		AccessCode string `json:"accessCode"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AccessCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "access code is required")
	}

	p, err := h.svc.ValidateCode(c.Request().Context(), req.AccessCode)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode):
			return echo.NewHTTPError(http.StatusBadRequest, "malformed access code")
		case errors.Is(err, auth.ErrCodeExpired):
			return echo.NewHTTPError(http.StatusGone, "access code expired")
		case errors.Is(err, auth.ErrCodeNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "access code not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "validation failed")
		}
	}

	token, err := h.codec.Issue(auth.KindPatient, p.ID, p.AccessCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session issuance failed")
	}
	auth.WriteSessionCookie(c, token, h.codec.TTL(), h.secureCookies)

	return c.JSON(http.StatusOK, toPatientResponse(p))
}

// Current handles GET /patient/current.
func (h *Handler) Current(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.GetPatient(c.Request().Context(), ident.AccountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, toPatientResponse(p))
}

// weighInRequest is the JSON body shared by both weigh-in endpoints.
type weighInRequest struct {
	Weight       float64  `json:"weight"`
	TargetWeight *float64 `json:"targetWeight"`
	Notes        *string  `json:"notes"`
}

func (r weighInRequest) toWeighIn() WeighIn {
	return WeighIn{WeightKG: r.Weight, TargetWeight: r.TargetWeight, Notes: r.Notes}
}

// RecordWeight handles POST /patient/weights. The response carries the new
// access code minted by the rotation; the session cookie is refreshed so
// browser clients keep working without storing the code themselves.
func (h *Handler) RecordWeight(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())

	var req weighInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	record, newCode, err := h.svc.RecordWeight(c.Request().Context(), ident.AccountID, req.toWeighIn())
	if err != nil {
		if errors.Is(err, ErrWeightOutOfRange) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record weight")
	}

	token, err := h.codec.Issue(auth.KindPatient, ident.AccountID, newCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session issuance failed")
	}
	auth.WriteSessionCookie(c, token, h.codec.TTL(), h.secureCookies)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"weight":      record,
		"access_code": newCode,
		"warning":     "Store this code securely. The previous code no longer works.",
	})
}

// ListWeights handles GET /patient/weight-history.
func (h *Handler) ListWeights(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	records, total, err := h.svc.Weights(c.Request().Context(), ident.AccountID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, pg.Limit, pg.Offset))
}

// ListOwnWeightsByID handles GET /patient/weight-history/:id. The id is
// cross-checked against the resolved identity; a patient can never read
// another patient's history through this path.
func (h *Handler) ListOwnWeightsByID(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if id != ident.AccountID {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return h.ListWeights(c)
}

// UpdateTargetWeight handles PATCH /patient/target-weight.
func (h *Handler) UpdateTargetWeight(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())

	var req struct {
		TargetWeightKG *float64 `json:"targetWeightKg"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.UpdateTargetWeight(c.Request().Context(), ident.AccountID, req.TargetWeightKG); err != nil {
		if errors.Is(err, ErrWeightOutOfRange) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update target weight")
	}
	return c.NoContent(http.StatusNoContent)
}

// LinkIdentity handles POST /patient/link. The patient authenticates through
// a code-backed channel and presents a federated bearer token whose subject
// gets bound to the account.
func (h *Handler) LinkIdentity(c echo.Context) error {
	if h.federated == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "federated login is not configured")
	}

	ident := auth.IdentityFromContext(c.Request().Context())

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bearer token required")
	}
	const prefix = "Bearer "
	if len(authHeader) <= len(prefix) {
		return echo.NewHTTPError(http.StatusBadRequest, "bearer token required")
	}
	subject, err := h.federated.Subject(authHeader[len(prefix):])
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bearer token")
	}

	if err := h.svc.LinkToIdentity(c.Request().Context(), ident.AccountID, subject); err != nil {
		if errors.Is(err, auth.ErrIdentityConflict) {
			return echo.NewHTTPError(http.StatusConflict, "identity already linked")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to link identity")
	}
	return c.NoContent(http.StatusNoContent)
}

// Logout handles POST /patient/logout.
func (h *Handler) Logout(c echo.Context) error {
	auth.ClearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// -- Professional-facing handlers --

// CreatePatient handles POST /patients. The freshly minted access code is
// returned exactly once so the professional can hand it to the patient.
func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"patient":     toPatientResponse(&p),
		"access_code": p.AccessCode,
		"warning":     "Store this code securely. It will not be shown again.",
	})
}

// CreatePatientByCode handles POST /professional/:code/patients, the
// creation variant authenticated by the professional's access code in the
// path instead of a gated session. The code is verified against the store
// before the request is treated as CreatePatient.
func (h *Handler) CreatePatientByCode(c echo.Context) error {
	if _, err := h.professionals.VerifyCode(c.Request().Context(), c.Param("code")); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return h.CreatePatient(c)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	responses := make([]*patientResponse, len(patients))
	for i, p := range patients {
		responses[i] = toPatientResponse(p)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(responses, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, toPatientResponse(p))
}

func (h *Handler) ListPatientWeights(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	records, total, err := h.svc.Weights(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, pg.Limit, pg.Offset))
}

// RecordPatientWeight handles POST /professional/patients/:id/weight. The
// professional gets the rotated code in the response so they can hand it to
// the patient after an in-clinic weigh-in.
func (h *Handler) RecordPatientWeight(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req weighInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	record, newCode, err := h.svc.RecordWeight(c.Request().Context(), id, req.toWeighIn())
	if err != nil {
		switch {
		case errors.Is(err, ErrWeightOutOfRange):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to record weight")
		}
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"weight":      record,
		"access_code": newCode,
		"warning":     "Hand this code to the patient. The previous code no longer works.",
	})
}

func (h *Handler) UpdatePatientTargetWeight(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req struct {
		TargetWeightKG *float64 `json:"targetWeightKg"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.UpdateTargetWeight(c.Request().Context(), id, req.TargetWeightKG); err != nil {
		switch {
		case errors.Is(err, ErrWeightOutOfRange):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update target weight")
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateDietLevel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req struct {
		DietLevel int `json:"dietLevel"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.UpdateDietLevel(c.Request().Context(), id, req.DietLevel); err != nil {
		switch {
		case errors.Is(err, ErrInvalidDietLevel):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update diet level")
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeCode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.RevokeCode(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke code")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "revoked",
		"message": "access code has been revoked",
	})
}

func (h *Handler) ReissueCode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	code, err := h.svc.ReissueCode(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reissue code")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_code": code,
		"warning":     "Store this code securely. It will not be shown again.",
	})
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivatePatient(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to deactivate patient")
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
