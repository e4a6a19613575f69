package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/radorder/radorder/internal/platform/auth"
	"github.com/radorder/radorder/internal/platform/blobstore"
	"github.com/radorder/radorder/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints: anyone participating in the order
	readGroup := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleAdminReferring, auth.RoleAdminStaff,
		auth.RoleAdminRadiology, auth.RoleRadiologist, auth.RoleScheduler))
	readGroup.GET("/orders", h.ListOrders)
	readGroup.GET("/orders/:id", h.GetOrder)
	readGroup.GET("/orders/:id/history", h.GetHistory)

	// Physician endpoints
	physicianGroup := api.Group("", auth.RequireRole(auth.RolePhysician))
	physicianGroup.GET("/orders/:id/validation-attempts", h.GetAttempts)
	physicianGroup.POST("/orders/:id/signature-upload-url", h.RequestSignatureUpload)
	physicianGroup.PUT("/orders/:id", h.FinalizeOrder)

	// Cancellation: physicians and administrative staff
	cancelGroup := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleAdminReferring, auth.RoleAdminStaff, auth.RoleAdminRadiology))
	cancelGroup.POST("/orders/:id/cancel", h.CancelOrder)
}

// HTTPError maps order workflow errors to HTTP responses.
func HTTPError(err error) *echo.HTTPError {
	var transition *InvalidTransitionError
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, "not authorized for this order")
	case errors.As(err, &transition):
		return echo.NewHTTPError(http.StatusConflict, transition.Error())
	case errors.Is(err, ErrAttemptConflict):
		return echo.NewHTTPError(http.StatusConflict, "concurrent validation attempt, try again")
	case errors.Is(err, ErrInvalidPayload),
		errors.Is(err, blobstore.ErrInvalidContentType),
		errors.Is(err, blobstore.ErrMissingFileName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func orderID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.Get(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.List(ctx, auth.UserIDFromContext(ctx), Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return HTTPError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetAttempts(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := h.svc.ListAttempts(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := h.svc.ListHistory(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

type signatureUploadRequest struct {
	ContentType string `json:"contentType"`
	FileName    string `json:"fileName"`
}

func (h *Handler) RequestSignatureUpload(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	var req signatureUploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	up, err := h.svc.RequestSignatureUpload(ctx, id, req.ContentType, req.FileName, auth.UserIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, up)
}

func (h *Handler) FinalizeOrder(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	var p FinalizePayload
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	res, err := h.svc.Finalize(ctx, id, &p, auth.UserIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelOrder(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	o, err := h.svc.Cancel(ctx, id, auth.UserIDFromContext(ctx), req.Reason)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}
