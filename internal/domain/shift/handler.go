package shift

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caregrid/caregrid/internal/platform/auth"
	"github.com/caregrid/caregrid/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "caregiver", "family"))
	readGroup.GET("/shifts", h.ListShifts)
	readGroup.GET("/shifts/:id", h.GetShift)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/shifts/cascade", h.CreateCascadeShift)
	adminGroup.POST("/shifts/:id/assign", h.AssignCaregiver)

	caregiverGroup := api.Group("", auth.RequireRole("caregiver"))
	caregiverGroup.POST("/shifts/:id/accept", h.AcceptOffer)
	caregiverGroup.POST("/shifts/:id/decline", h.DeclineOffer)

	statusGroup := api.Group("", auth.RequireRole("admin", "caregiver"))
	statusGroup.PATCH("/shifts/:id/status", h.UpdateStatus)
}

type createCascadeRequest struct {
	AgencyID             uuid.UUID  `json:"agency_id"`
	ElderID              uuid.UUID  `json:"elder_id"`
	Date                 string     `json:"date"`
	StartTime            string     `json:"start_time"`
	EndTime              string     `json:"end_time"`
	PreferredCaregiverID *uuid.UUID `json:"preferred_caregiver_id,omitempty"`
	Notes                *string    `json:"notes,omitempty"`
}

// CreateCascadeShift handles POST /shifts/cascade.
func (h *Handler) CreateCascadeShift(c echo.Context) error {
	var req createCascadeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	s, err := h.svc.CreateCascadeShift(c.Request().Context(), CreateCascadeRequest{
		AgencyID:             req.AgencyID,
		ElderID:              req.ElderID,
		Date:                 date,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		PreferredCaregiverID: req.PreferredCaregiverID,
		Notes:                req.Notes,
		CreatedBy:            actor.UserID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, s)
}

// GetShift handles GET /shifts/:id. Reading an offered shift whose window has
// lapsed advances the cascade before responding.
func (h *Handler) GetShift(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.svc.GetShift(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "shift not found")
	}
	return c.JSON(http.StatusOK, s)
}

// ListShifts handles GET /shifts. With caregiver_id+date it lists one
// caregiver's day; otherwise it filters by agency_id, elder_id and status.
func (h *Handler) ListShifts(c echo.Context) error {
	if cgID := c.QueryParam("caregiver_id"); cgID != "" {
		caregiverID, err := uuid.Parse(cgID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid caregiver_id")
		}
		date, err := time.Parse("2006-01-02", c.QueryParam("date"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		items, err := h.svc.ListForCaregiver(c.Request().Context(), caregiverID, date)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, items)
	}

	agencyID, err := uuid.Parse(c.QueryParam("agency_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "agency_id is required")
	}
	var elderID *uuid.UUID
	if e := c.QueryParam("elder_id"); e != "" {
		eid, err := uuid.Parse(e)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid elder_id")
		}
		elderID = &eid
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByAgency(c.Request().Context(), agencyID, elderID, Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type offerResponseRequest struct {
	OfferIndex int `json:"offer_index"`
}

// AcceptOffer handles POST /shifts/:id/accept. The acting caregiver comes
// from the auth context; the offer index from the notification they received.
func (h *Handler) AcceptOffer(c echo.Context) error {
	return h.respondToOffer(c, h.svc.AcceptOffer)
}

// DeclineOffer handles POST /shifts/:id/decline.
func (h *Handler) DeclineOffer(c echo.Context) error {
	return h.respondToOffer(c, h.svc.DeclineOffer)
}

func (h *Handler) respondToOffer(c echo.Context, respond func(ctx context.Context, shiftID, caregiverID uuid.UUID, offerIndex int) (*Shift, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req offerResponseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.ActorFromContext(c.Request().Context())
	s, err := respond(c.Request().Context(), id, actor.UserID, req.OfferIndex)
	if err != nil {
		if errors.Is(err, ErrNotCurrentRecipient) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

type assignRequest struct {
	CaregiverID uuid.UUID `json:"caregiver_id"`
}

// AssignCaregiver handles POST /shifts/:id/assign, the manual path that
// bypasses the cascade.
func (h *Handler) AssignCaregiver(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.svc.AssignCaregiver(c.Request().Context(), id, req.CaregiverID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

// UpdateStatus handles PATCH /shifts/:id/status.
func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}
