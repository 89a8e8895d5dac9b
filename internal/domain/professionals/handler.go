package professionals

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
	secureCookies bool
}

func NewHandler(svc *Service, codec *auth.SessionCodec, federated *auth.FederatedVerifier, secureCookies bool) *Handler {
	return &Handler{svc: svc, codec: codec, federated: federated, secureCookies: secureCookies}
}

// RegisterRoutes wires the handler's routes. public carries no gate,
// professionalG is the gated /professional group.
func (h *Handler) RegisterRoutes(public, professionalG *echo.Group) {
	public.POST("/professional/validate", h.ValidateCode)

	professionalG.GET("/current", h.Current)
	professionalG.POST("/link", h.LinkIdentity)
	professionalG.POST("/logout", h.Logout)

	professionalG.POST("/staff", h.CreateProfessional)
	professionalG.GET("/staff", h.ListProfessionals)
	professionalG.GET("/staff/:id", h.GetProfessional)
	professionalG.POST("/staff/:id/revoke-code", h.RevokeCode)
	professionalG.POST("/staff/:id/reissue-code", h.ReissueCode)
	professionalG.DELETE("/staff/:id", h.DeactivateProfessional)
}

type professionalResponse struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email,omitempty"`
	Specialty *string `json:"specialty,omitempty"`
	License   *string `json:"license,omitempty"`
	Linked    bool    `json:"linked"`
}

func toProfessionalResponse(p *Professional) *professionalResponse {
	return &professionalResponse{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Specialty: p.Specialty,
		License:   p.License,
		Linked:    p.SubjectID != nil,
	}
}

// ValidateCode handles POST /professional/validate. A missing or malformed
// code is a client error; professional codes do not expire, so every lookup
// failure is a uniform 404.
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
		case errors.Is(err, auth.ErrCodeNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "access code not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "validation failed")
		}
	}

	token, err := h.codec.Issue(auth.KindProfessional, p.ID, p.AccessCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session issuance failed")
	}
	auth.WriteSessionCookie(c, token, h.codec.TTL(), h.secureCookies)

	return c.JSON(http.StatusOK, toProfessionalResponse(p))
}

// Current handles GET /professional/current.
func (h *Handler) Current(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	p, err := h.svc.GetProfessional(c.Request().Context(), ident.AccountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "professional not found")
	}
	return c.JSON(http.StatusOK, toProfessionalResponse(p))
}

// LinkIdentity handles POST /professional/link.
func (h *Handler) LinkIdentity(c echo.Context) error {
	if h.federated == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "federated login is not configured")
	}

	ident := auth.IdentityFromContext(c.Request().Context())

	authHeader := c.Request().Header.Get("Authorization")
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

// Logout handles POST /professional/logout.
func (h *Handler) Logout(c echo.Context) error {
	auth.ClearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// CreateProfessional handles POST /professional/staff. Like patient
// creation, the minted code is shown exactly once.
func (h *Handler) CreateProfessional(c echo.Context) error {
	var p Professional
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProfessional(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"professional": toProfessionalResponse(&p),
		"access_code":  p.AccessCode,
		"warning":      "Store this code securely. It will not be shown again.",
	})
}

func (h *Handler) ListProfessionals(c echo.Context) error {
	pg := pagination.FromContext(c)
	staff, total, err := h.svc.ListProfessionals(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	responses := make([]*professionalResponse, len(staff))
	for i, p := range staff {
		responses[i] = toProfessionalResponse(p)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(responses, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetProfessional(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetProfessional(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "professional not found")
	}
	return c.JSON(http.StatusOK, toProfessionalResponse(p))
}

func (h *Handler) RevokeCode(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.RevokeCode(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "professional not found")
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
			return echo.NewHTTPError(http.StatusNotFound, "professional not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reissue code")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_code": code,
		"warning":     "Store this code securely. It will not be shown again.",
	})
}

func (h *Handler) DeactivateProfessional(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ident := auth.IdentityFromContext(c.Request().Context())
	if ident != nil && ident.AccountID == id {
		return echo.NewHTTPError(http.StatusConflict, "cannot deactivate your own account")
	}
	if err := h.svc.DeactivateProfessional(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "professional not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to deactivate professional")
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
