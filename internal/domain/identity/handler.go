package identity

import (
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
	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/users", h.CreateUser)
	adminGroup.PATCH("/users/:id", h.UpdateUser)
	adminGroup.POST("/users/:id/deactivate", h.DeactivateUser)
	adminGroup.POST("/elders", h.CreateElder)
	adminGroup.PATCH("/elders/:id", h.UpdateElder)
	adminGroup.POST("/elders/:id/primary-caregiver", h.SetPrimaryCaregiver)
	adminGroup.POST("/elders/:id/deactivate", h.DeactivateElder)

	readGroup := api.Group("", auth.RequireRole("admin", "caregiver", "family"))
	readGroup.GET("/users", h.ListUsers)
	readGroup.GET("/users/:id", h.GetUser)
	readGroup.GET("/elders", h.ListElders)
	readGroup.GET("/elders/:id", h.GetElder)
}

type createUserRequest struct {
	AgencyID  uuid.UUID `json:"agency_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Roles     []string  `json:"roles"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.CreateUser(c.Request().Context(), &User{
		AgencyID:  req.AgencyID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Roles:     req.Roles,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

type updateUserRequest struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Phone     string   `json:"phone"`
	Roles     []string `json:"roles"`
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, req.FirstName, req.LastName, req.Phone, req.Roles)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateUser(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUsers(c echo.Context) error {
	agencyID, err := uuid.Parse(c.QueryParam("agency_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "agency_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), agencyID, c.QueryParam("role"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type createElderRequest struct {
	AgencyID           uuid.UUID  `json:"agency_id"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	DateOfBirth        *time.Time `json:"date_of_birth"`
	Address            string     `json:"address"`
	CareNotes          string     `json:"care_notes"`
	PrimaryCaregiverID *uuid.UUID `json:"primary_caregiver_id"`
}

func (h *Handler) CreateElder(c echo.Context) error {
	var req createElderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.CreateElder(c.Request().Context(), &Elder{
		AgencyID:           req.AgencyID,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		DateOfBirth:        req.DateOfBirth,
		Address:            req.Address,
		CareNotes:          req.CareNotes,
		PrimaryCaregiverID: req.PrimaryCaregiverID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetElder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.GetElder(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "elder not found")
	}
	return c.JSON(http.StatusOK, e)
}

type updateElderRequest struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Address     string     `json:"address"`
	CareNotes   string     `json:"care_notes"`
}

func (h *Handler) UpdateElder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateElderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.UpdateElder(c.Request().Context(), id, req.FirstName, req.LastName, req.Address, req.CareNotes, req.DateOfBirth)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

type setPrimaryCaregiverRequest struct {
	CaregiverID *uuid.UUID `json:"caregiver_id"`
}

func (h *Handler) SetPrimaryCaregiver(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req setPrimaryCaregiverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.SetPrimaryCaregiver(c.Request().Context(), id, req.CaregiverID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeactivateElder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateElder(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListElders(c echo.Context) error {
	agencyID, err := uuid.Parse(c.QueryParam("agency_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "agency_id is required")
	}
	activeOnly := c.QueryParam("active") != "false"
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListElders(c.Request().Context(), agencyID, activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
