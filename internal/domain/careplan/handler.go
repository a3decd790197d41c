package careplan

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
	readGroup := api.Group("", auth.RequireRole("admin", "caregiver", "family"))
	readGroup.GET("/elders/:id/tasks", h.DayTasks)
	readGroup.GET("/elders/:id/tasks/next", h.NextTask)
	readGroup.GET("/care-items", h.ListItems)
	readGroup.GET("/care-items/:id", h.GetItem)

	writeGroup := api.Group("", auth.RequireRole("admin", "family"))
	writeGroup.POST("/care-items", h.CreateItem)
	writeGroup.POST("/care-items/:id/deactivate", h.DeactivateItem)

	logGroup := api.Group("", auth.RequireRole("admin", "caregiver", "family"))
	logGroup.POST("/dose-logs", h.RecordDose)
}

// DayTasks handles GET /elders/:id/tasks — the full prioritized queue for
// today, recomputed on every call.
func (h *Handler) DayTasks(c echo.Context) error {
	elderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid elder id")
	}
	summary, err := h.svc.DayTasks(c.Request().Context(), elderID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

// NextTask handles GET /elders/:id/tasks/next. Responds with a null task when
// the elder is all caught up.
func (h *Handler) NextTask(c echo.Context) error {
	elderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid elder id")
	}
	next, err := h.svc.NextTaskForElder(c.Request().Context(), elderID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"next": next})
}

func (h *Handler) CreateItem(c echo.Context) error {
	var item ScheduledItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateItem(c.Request().Context(), &item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "scheduled item not found")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeactivateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateItem(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListItems(c echo.Context) error {
	elderID, err := uuid.Parse(c.QueryParam("elder_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "elder_id is required")
	}
	itemType := ItemType(c.QueryParam("type"))
	if itemType == "" {
		itemType = TypeMedication
	}
	items, err := h.svc.ListItems(c.Request().Context(), elderID, itemType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) RecordDose(c echo.Context) error {
	var l DoseLog
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if actor := auth.ActorFromContext(c.Request().Context()); actor.UserID != uuid.Nil {
		uid := actor.UserID
		l.RecordedBy = &uid
	}
	if err := h.svc.RecordDose(c.Request().Context(), &l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, l)
}
