package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/radorder/radorder/internal/domain/identity"
	"github.com/radorder/radorder/internal/domain/order"
	"github.com/radorder/radorder/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admin", auth.RequireRole(auth.RoleAdminReferring, auth.RoleAdminStaff))
	g.GET("/orders/:id/readiness", h.GetReadiness)
	g.POST("/orders/:id/emr-summary", h.PasteSummary)
	g.POST("/orders/:id/send-to-radiology", h.SendToRadiology)
}

func errorStatus(err error) error {
	var notReady *NotReadyError
	switch {
	case errors.As(err, &notReady):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
			"message":       "order is not ready for radiology",
			"missingFields": notReady.MissingFields,
		})
	case errors.Is(err, identity.ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, identity.ErrInvalidPhone):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrOrganizationNotFound), errors.Is(err, ErrNotRadiologyGroup):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return order.HTTPError(err)
	}
}

func orderID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) GetReadiness(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	r, err := h.svc.Readiness(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, r)
}

type pasteRequest struct {
	Text string `json:"text"`
}

func (h *Handler) PasteSummary(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	var req pasteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	r, err := h.svc.ApplyEMRSummary(ctx, id, auth.UserIDFromContext(ctx), req.Text)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, r)
}

type sendRequest struct {
	RadiologyOrganizationID int64 `json:"radiologyOrganizationId"`
}

func (h *Handler) SendToRadiology(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	o, err := h.svc.SendToRadiology(ctx, id, req.RadiologyOrganizationID, auth.UserIDFromContext(ctx))
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, o)
}
