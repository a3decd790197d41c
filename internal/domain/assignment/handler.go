package assignment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caregrid/caregrid/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/assignments", h.Create)
	adminGroup.PATCH("/assignments/:id", h.UpdateElders)
	adminGroup.POST("/assignments/:id/deactivate", h.Deactivate)

	readGroup := api.Group("", auth.RequireRole("admin", "caregiver"))
	readGroup.GET("/assignments", h.ListActive)
	readGroup.GET("/assignments/:id", h.Get)
}

type createRequest struct {
	AgencyID    uuid.UUID   `json:"agency_id"`
	CaregiverID uuid.UUID   `json:"caregiver_id"`
	ElderIDs    []uuid.UUID `json:"elder_ids"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), req.AgencyID, req.CaregiverID, req.ElderIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "assignment not found")
	}
	return c.JSON(http.StatusOK, a)
}

type updateEldersRequest struct {
	ElderIDs []uuid.UUID `json:"elder_ids"`
}

func (h *Handler) UpdateElders(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateEldersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateElders(c.Request().Context(), id, req.ElderIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListActive(c echo.Context) error {
	agencyID, err := uuid.Parse(c.QueryParam("agency_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "agency_id is required")
	}
	items, err := h.svc.ListActiveByAgency(c.Request().Context(), agencyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
