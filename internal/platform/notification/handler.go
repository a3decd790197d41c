package notification

import (
	"net/http"

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

// RegisterRoutes mounts the inbox endpoints. Every route acts on the
// authenticated user's own notifications.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications", h.Inbox)
	api.POST("/notifications/:id/read", h.MarkRead)
	api.POST("/notifications/read-all", h.MarkAllRead)
}

// Inbox handles GET /notifications?unread=true.
func (h *Handler) Inbox(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())
	unreadOnly := c.QueryParam("unread") == "true"
	pg := pagination.FromContext(c)

	items, total, err := h.svc.Inbox(c.Request().Context(), actor.UserID, unreadOnly, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	if err := h.svc.MarkRead(c.Request().Context(), id, actor.UserID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())
	count, err := h.svc.MarkAllRead(c.Request().Context(), actor.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": count})
}
