package validation

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/radorder/radorder/internal/domain/order"
	"github.com/radorder/radorder/internal/platform/auth"
	"github.com/radorder/radorder/internal/platform/llm"
)

// UnavailableMessage is shown when every provider failed.
const UnavailableMessage = "validation service temporarily unavailable, try again later"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RolePhysician))
	g.POST("/orders/validate", h.Validate)
}

func (h *Handler) Validate(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	resp, err := h.svc.Validate(ctx, req, auth.UserIDFromContext(ctx))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, llm.ErrServiceUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, UnavailableMessage)
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return order.HTTPError(err)
	}
}
