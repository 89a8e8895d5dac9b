package wellbeing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dieta/dieta/internal/platform/auth"
	"github.com/dieta/dieta/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the handler's routes. Patients write and read only
// their own entries; professionals read any patient's history.
func (h *Handler) RegisterRoutes(patientG, professionalG *echo.Group) {
	patientG.POST("/moods", h.RecordMood)
	patientG.GET("/moods", h.MyEntries)

	professionalG.GET("/patients/:id/moods", h.PatientEntries)
}

// RecordMood handles POST /patient/moods.
func (h *Handler) RecordMood(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())

	var req struct {
		Score int     `json:"score"`
		Note  *string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	entry, err := h.svc.RecordMood(c.Request().Context(), ident.AccountID, req.Score, req.Note)
	if err != nil {
		if errors.Is(err, ErrInvalidScore) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, entry)
}

// MyEntries handles GET /patient/moods.
func (h *Handler) MyEntries(c echo.Context) error {
	ident := auth.IdentityFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	entries, total, err := h.svc.Entries(c.Request().Context(), ident.AccountID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

// PatientEntries handles GET /professional/patients/:id/moods.
func (h *Handler) PatientEntries(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)

	entries, total, err := h.svc.Entries(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}
